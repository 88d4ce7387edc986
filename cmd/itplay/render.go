package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
)

var renderFlags struct {
	output  string
	seconds float64
}

var renderCmd = &cobra.Command{
	Use:   "render [song.json]",
	Short: "Render a song into a 16-bit stereo WAV file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "out.wav",
		"Output WAV file path")
	renderCmd.Flags().Float64Var(&renderFlags.seconds, "seconds", 0,
		"Stop after this many seconds (0 means the song end; requires --no-loop or a limit)")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	if renderFlags.seconds <= 0 {
		// A looped song never ends.
		cfg.NoLoop = true
	}
	stream, _, err := newStream(songArg(args), cfg, logger)
	if err != nil {
		return err
	}
	defer stream.Close()

	f, err := os.Create(renderFlags.output)
	if err != nil {
		return err
	}
	defer f.Close()

	frames, err := writeWAV(f, stream, cfg.SampleRate, renderFlags.seconds)
	if err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("render %s", renderFlags.output)))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2fs written\n",
		renderFlags.output, float64(frames)/float64(cfg.SampleRate))
	return nil
}

// writeWAV reads the 16-bit stereo PCM from src and encodes it.
// A positive seconds value limits the output length.
func writeWAV(w io.WriteSeeker, src io.Reader, sampleRate int, seconds float64) (int, error) {
	const numChannels = 2
	const frameSize = 2 * numChannels

	enc := wav.NewEncoder(w, sampleRate, 16, numChannels, 1)

	maxFrames := -1
	if seconds > 0 {
		maxFrames = int(seconds * float64(sampleRate))
	}

	raw := make([]byte, 4096*frameSize)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, 0, len(raw)/2),
		SourceBitDepth: 16,
	}

	frames := 0
	for maxFrames < 0 || frames < maxFrames {
		chunk := raw
		if maxFrames >= 0 {
			chunk = chunk[:min(len(chunk), (maxFrames-frames)*frameSize)]
		}
		n, err := io.ReadFull(src, chunk)
		n -= n % frameSize
		if n > 0 {
			buf.Data = buf.Data[:0]
			for i := 0; i < n; i += 2 {
				buf.Data = append(buf.Data, int(int16(binary.LittleEndian.Uint16(raw[i:]))))
			}
			if err := enc.Write(buf); err != nil {
				return frames, err
			}
			frames += n / frameSize
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return frames, err
		}
	}

	return frames, enc.Close()
}
