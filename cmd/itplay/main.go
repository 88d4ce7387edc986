// This CLI tool plays the itplay song files.
// Without a song file argument, a built-in demo song is used.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/spf13/cobra"

	"github.com/quasilyte/itplay"
)

type options struct {
	configPath string
	verbose    bool

	sampleRate int
	volume     float64
	voices     int
	backend    string
	noLoop     bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "itplay",
	Short: "A tracker module player",
	Long: `itplay plays tracker songs with the IT-style effects,
new note actions and envelopes.

Songs are JSON files that describe the samples, instruments and
textual patterns; run "itplay play" to hear the built-in demo.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Config file path (default is ~/.config/itplay/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Print the debug logs to stderr")
	rootCmd.PersistentFlags().IntVar(&opts.sampleRate, "sample-rate", 0,
		"Output sample rate (overrides the config)")
	rootCmd.PersistentFlags().Float64Var(&opts.volume, "volume", 0,
		"Output volume in [0, 1] (overrides the config)")
	rootCmd.PersistentFlags().IntVar(&opts.voices, "voices", 0,
		"Physical voice pool size (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", "",
		`Audio backend: "ebiten" or "oto" (overrides the config)`)
	rootCmd.PersistentFlags().BoolVar(&opts.noLoop, "no-loop", false,
		"Stop at the song end instead of looping")

	rootCmd.AddCommand(playCmd, windowCmd, renderCmd, midiCmd, predictCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// settings merges the config file and the command line flags.
func settings() (*config, *slog.Logger, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fault.Wrap(err, fmsg.With("load config"))
	}
	if opts.sampleRate != 0 {
		cfg.SampleRate = opts.sampleRate
	}
	if opts.volume != 0 {
		cfg.Volume = opts.volume
	}
	if opts.voices != 0 {
		cfg.Voices = opts.voices
	}
	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.noLoop {
		cfg.NoLoop = true
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func songArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// newStream loads the song and creates a ready to play stream.
func newStream(filename string, cfg *config, logger *slog.Logger) (*itplay.Stream, *song, error) {
	s, err := loadSong(filename)
	if err != nil {
		return nil, nil, err
	}
	stream := itplay.NewStream()
	err = stream.LoadModule(s.module, itplay.LoadModuleConfig{
		SampleRate: cfg.SampleRate,
		Voices:     cfg.Voices,
		NoLoop:     cfg.NoLoop,
		Samples:    s.samples,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fault.Wrap(err, fmsg.With("load module"))
	}
	stream.SetVolume(cfg.Volume)
	return stream, s, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := settings()
		if err != nil {
			return err
		}
		if err := cfg.save(opts.configPath); err != nil {
			return fault.Wrap(err, fmsg.With("save config"))
		}
		path, _ := configPath(opts.configPath)
		fmt.Fprintf(cmd.OutOrStdout(), "config saved to %s\n", path)
		return nil
	},
}
