package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/spf13/cobra"

	"github.com/quasilyte/itplay"
)

var playTUI bool

var playCmd = &cobra.Command{
	Use:   "play [song.json]",
	Short: "Play a song through the audio device",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolVarP(&playTUI, "tui", "t", false,
		"Show the terminal view with the channel states")
}

// audioPlayer is implemented by both ebiten and oto players.
type audioPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

func newAudioPlayer(backend string, sampleRate int, src io.Reader) (audioPlayer, error) {
	switch backend {
	case "", "ebiten":
		// There can be only one audio context, see Ebitengine docs.
		ctx := audio.NewContext(sampleRate)
		return ctx.NewPlayer(src)

	case "oto":
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return nil, err
		}
		<-ready
		return ctx.NewPlayer(src), nil

	default:
		return nil, fault.New(fmt.Sprintf("unknown audio backend %q", backend))
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	stream, s, err := newStream(songArg(args), cfg, logger)
	if err != nil {
		return err
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	if !playTUI {
		stream.SetEventHandler(func(e itplay.StreamEvent) {
			switch e.Kind {
			case itplay.EventMarker:
				fmt.Fprintf(out, "%7.2fs marker %d\n", e.Time, e.MarkerEventData())
			case itplay.EventLoop:
				fmt.Fprintf(out, "%7.2fs loop\n", e.Time)
			}
		})
	}

	player, err := newAudioPlayer(cfg.Backend, cfg.SampleRate, stream)
	if err != nil {
		return fault.Wrap(err, fmsg.With("create audio player"))
	}
	defer player.Close()
	player.Play()

	if playTUI {
		m := newViewModel(stream, s.module.Name, player)
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}

	fmt.Fprintf(out, "playing %q, press Ctrl+C to stop\n", s.module.Name)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-interrupt:
			return nil
		case <-ticker.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}
