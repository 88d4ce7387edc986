package main

import (
	"fmt"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/spf13/cobra"

	"github.com/quasilyte/itplay"
	"github.com/quasilyte/itplay/midiout"
)

var midiOutput string

var midiCmd = &cobra.Command{
	Use:   "midi [song.json]",
	Short: "Export the song notes into a Standard MIDI File",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := settings()
		if err != nil {
			return err
		}
		s, err := loadSong(songArg(args))
		if err != nil {
			return err
		}

		f, err := os.Create(midiOutput)
		if err != nil {
			return err
		}
		defer f.Close()

		err = midiout.ExportSMF(f, s.module, midiout.ExportConfig{
			SampleRate: cfg.SampleRate,
			Logger:     logger,
		})
		if err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("export %s", midiOutput)))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s written\n", midiOutput)
		return nil
	},
}

var predictFlags struct {
	order    int
	row      int
	markers  []int
	maxTicks int
}

var predictCmd = &cobra.Command{
	Use:   "predict [song.json]",
	Short: "Print when the loop point, the sync markers and a position are reached",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPredict,
}

func init() {
	midiCmd.Flags().StringVarP(&midiOutput, "output", "o", "out.mid",
		"Output MIDI file path")

	predictCmd.Flags().IntVar(&predictFlags.order, "order", -1,
		"Target order (a negative value disables the position target)")
	predictCmd.Flags().IntVar(&predictFlags.row, "row", 0,
		"Target row inside the target order")
	predictCmd.Flags().IntSliceVar(&predictFlags.markers, "marker", nil,
		"Sync marker values (Zxx) to look for")
	predictCmd.Flags().IntVar(&predictFlags.maxTicks, "max-ticks", 100000,
		"Simulation limit in ticks")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	s, err := loadSong(songArg(args))
	if err != nil {
		return err
	}

	targets := []itplay.SyncTarget{itplay.LoopWrapTarget()}
	labels := []string{"loop"}
	for _, marker := range predictFlags.markers {
		targets = append(targets, itplay.SyncMarkerTarget(marker))
		labels = append(labels, fmt.Sprintf("marker %d", marker))
	}
	if predictFlags.order >= 0 {
		targets = append(targets, itplay.PositionTarget(predictFlags.order, predictFlags.row, 0))
		labels = append(labels, fmt.Sprintf("order %d row %d", predictFlags.order, predictFlags.row))
	}

	simConfig := itplay.SimulationConfig{
		SampleRate: cfg.SampleRate,
		Logger:     logger,
	}
	timestamps, err := itplay.Predict(s.module, simConfig, 0, 0, targets, predictFlags.maxTicks)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, ts := range timestamps {
		if !ts.Found {
			fmt.Fprintf(out, "%-16s not reached\n", labels[i])
			continue
		}
		fmt.Fprintf(out, "%-16s %8.3fs (%d frames)\n", labels[i], ts.Seconds(cfg.SampleRate), ts.Samples)
	}
	return nil
}
