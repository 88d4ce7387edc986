package main

import (
	"fmt"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/cobra"

	"github.com/quasilyte/itplay"
	"github.com/quasilyte/itplay/itfile"
)

var windowCmd = &cobra.Command{
	Use:   "window [song.json]",
	Short: "Play a song in a window; keys 1-9 preview the instruments",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWindow,
}

// previewNote is C-5: it plays the samples at their C5Speed.
const previewNote = 60

func runWindow(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	stream, s, err := newStream(songArg(args), cfg, logger)
	if err != nil {
		return err
	}

	// Create a sound player using the Ebitengine audio context.
	// You can have multiple players, but only one audio context.
	audioContext := audio.NewContext(cfg.SampleRate)
	player, err := audioContext.NewPlayer(stream)
	if err != nil {
		return err
	}

	g := &game{
		stream:   stream,
		player:   player,
		filename: songArg(args),
		title:    s.module.Name,
		paused:   true,
	}

	g.synth = itplay.NewSynthesizer(itplay.SynthesizerConfig{
		NumChannels: 2,
	})
	err = g.synth.LoadInstruments(s.module, itplay.LoadModuleConfig{
		SampleRate: cfg.SampleRate,
		Samples:    s.samples,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	g.numInstruments = len(s.module.Instruments)
	{
		player, err := audioContext.NewPlayer(g.synth)
		if err != nil {
			return err
		}
		g.synthPlayer = player
		g.synthPlayer.Play()
	}

	ebiten.SetWindowTitle("itplay")
	return ebiten.RunGame(g)
}

type game struct {
	stream *itplay.Stream
	player *audio.Player

	synth          *itplay.Synthesizer
	synthPlayer    *audio.Player
	synthChannel   int
	numInstruments int

	filename string
	title    string
	paused   bool
}

var instrumentKeys = []ebiten.Key{
	ebiten.Key1, ebiten.Key2, ebiten.Key3,
	ebiten.Key4, ebiten.Key5, ebiten.Key6,
	ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
		if g.player.IsPlaying() {
			g.player.Pause()
		} else {
			g.player.Play()
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		order, _, _ := g.stream.GetCursor()
		// The last order can't be skipped, the error is not interesting.
		_ = g.stream.SetPosition(order+1, 0)
	}

	for i, key := range instrumentKeys {
		if i >= g.numInstruments {
			break
		}
		if inpututil.IsKeyJustPressed(key) {
			// Alternate the channels, so the previous note can decay.
			if err := g.synth.PlayNote(g.synthChannel, previewNote, i+1); err != nil {
				return err
			}
			g.synthChannel = (g.synthChannel + 1) % 2
		}
		if inpututil.IsKeyJustReleased(key) {
			for ch := 0; ch < 2; ch++ {
				if err := g.synth.StopNote(ch); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	var sb strings.Builder
	if g.paused {
		sb.WriteString("Paused... press SPACE\n")
	} else {
		name := g.filename
		if name == "" {
			name = "demo"
		}
		fmt.Fprintf(&sb, "Playing %s (%s)...\n", g.title, name)
	}

	order, row, tick := g.stream.GetCursor()
	global := g.stream.GetGlobalInfo()
	fmt.Fprintf(&sb, "order %02d row %02d tick %02d  speed %d tempo %d gvol %d voices %d\n\n",
		order, row, tick, global.Speed, global.Tempo, global.GlobalVolume, global.ActiveVoices)

	for i := 0; i < g.stream.GetInfo().NumChannels; i++ {
		info, err := g.stream.GetChannelInfo(i)
		if err != nil {
			break
		}
		note := info.NoteName
		if note == "" {
			note = "..."
		}
		marker := " "
		if info.Triggered {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s%2d %s %s vol %2d pan %2d\n", marker, i+1, note, info.Effect, info.Volume, info.Pan)
	}

	fmt.Fprintf(&sb, "\nkeys 1-%d play %s with the instruments (synth voices: %d)\n",
		min(g.numInstruments, len(instrumentKeys)), itfile.NoteName(previewNote), g.synth.ActiveVoices())
	sb.WriteString("RIGHT skips to the next order")

	ebitenutil.DebugPrint(screen, sb.String())
}

func (g *game) Layout(_, _ int) (int, int) {
	return 640, 480
}
