package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/quasilyte/itplay/itfile"
)

//go:embed demo.json
var demoSong []byte

// songFile is a textual module description.
// The binary module parsing is not supported, the songs are written by hand.
type songFile struct {
	Name         string `json:"name"`
	Channels     int    `json:"channels"`
	Speed        int    `json:"speed"`
	Tempo        int    `json:"tempo"`
	GlobalVolume int    `json:"globalVolume"`
	Restart      int    `json:"restart"`
	Orders       []int  `json:"orders"`

	Samples     []songSample     `json:"samples"`
	Instruments []songInstrument `json:"instruments"`

	// Patterns is a list of rows; every row is a ParseRow string.
	Patterns [][]string `json:"patterns"`
}

type songSample struct {
	Name    string `json:"name"`
	Wave    string `json:"wave"`
	Length  int    `json:"length"`
	Cycles  int    `json:"cycles"`
	Loop    string `json:"loop"`
	Volume  int    `json:"volume"`
	C5Speed int    `json:"c5speed"`
	Decay   bool   `json:"decay"`
}

type songInstrument struct {
	Name    string `json:"name"`
	Sample  int    `json:"sample"`
	NNA     string `json:"nna"`
	DCT     string `json:"dct"`
	DCA     string `json:"dca"`
	FadeOut int    `json:"fadeout"`

	RandomVolume int `json:"randomVolume"`
	RandomPan    int `json:"randomPan"`

	VolumeEnvelope  *songEnvelope `json:"volumeEnvelope"`
	PanningEnvelope *songEnvelope `json:"panningEnvelope"`
	PitchEnvelope   *songEnvelope `json:"pitchEnvelope"`
}

type songEnvelope struct {
	// Nodes are [tick, value] pairs.
	Nodes   [][2]int `json:"nodes"`
	Loop    []int    `json:"loop"`
	Sustain []int    `json:"sustain"`
	Carry   bool     `json:"carry"`
	Filter  bool     `json:"filter"`
}

type song struct {
	module  *itfile.Module
	samples itfile.SampleBank
}

func loadSong(filename string) (*song, error) {
	data := demoSong
	if filename != "" {
		var err error
		data, err = os.ReadFile(filename)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("read song file"))
		}
	}
	var f songFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fault.Wrap(err, fmsg.With("decode song file"))
	}
	s, err := f.build()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("build module"))
	}
	return s, nil
}

func (f *songFile) build() (*song, error) {
	s := &song{}
	m := &itfile.Module{
		Name:         f.Name,
		NumChannels:  f.Channels,
		RestartOrder: f.Restart,
		InitialSpeed: f.Speed,
		InitialTempo: f.Tempo,
		GlobalVolume: f.GlobalVolume,
	}
	for _, o := range f.Orders {
		if o < 0 || o > 255 {
			return nil, fault.New(fmt.Sprintf("invalid order entry %d", o))
		}
		m.Orders = append(m.Orders, uint8(o))
	}

	for i, p := range f.Patterns {
		pat := itfile.Pattern{Rows: make([]itfile.Row, len(p))}
		for j, text := range p {
			row, err := itfile.ParseRow(text)
			if err != nil {
				return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("pattern %d row %d", i, j)))
			}
			pat.Rows[j] = row
		}
		m.Patterns = append(m.Patterns, pat)
	}

	rng := rand.New(rand.NewSource(1))
	for _, smp := range f.Samples {
		pcm, err := generateWave(smp, rng)
		if err != nil {
			return nil, err
		}
		sample := itfile.Sample{
			Name:          smp.Name,
			Handle:        s.samples.Add(pcm),
			Length:        len(pcm),
			C5Speed:       smp.C5Speed,
			DefaultVolume: uint8(smp.Volume),
			Is16Bit:       true,
		}
		if sample.DefaultVolume == 0 {
			sample.DefaultVolume = 64
		}
		switch smp.Loop {
		case "forward":
			sample.Loop = itfile.LoopForward
		case "pingpong":
			sample.Loop = itfile.LoopPingPong
		}
		if sample.Loop != itfile.LoopNone {
			sample.LoopEnd = len(pcm)
		}
		if sample.C5Speed == 0 {
			// A single period of the waveform sounds as a middle C.
			sample.C5Speed = len(pcm) / max(smp.Cycles, 1) * 262
		}
		m.Samples = append(m.Samples, sample)
	}

	for _, inst := range f.Instruments {
		compiled, err := inst.build()
		if err != nil {
			return nil, err
		}
		m.Instruments = append(m.Instruments, compiled)
	}

	s.module = m
	return s, nil
}

func (inst *songInstrument) build() (itfile.Instrument, error) {
	result := itfile.Instrument{
		Name:         inst.Name,
		FadeOut:      inst.FadeOut,
		GlobalVolume: 128,
		RandomVolume: uint8(inst.RandomVolume),
		RandomPan:    uint8(inst.RandomPan),
	}
	result.MapAllNotes(uint8(inst.Sample))

	switch inst.NNA {
	case "", "cut":
		result.NNA = itfile.NNACut
	case "continue":
		result.NNA = itfile.NNAContinue
	case "off":
		result.NNA = itfile.NNAOff
	case "fade":
		result.NNA = itfile.NNAFade
	default:
		return result, fault.New(fmt.Sprintf("%s: unknown nna %q", inst.Name, inst.NNA))
	}
	switch inst.DCT {
	case "", "none":
		result.DCT = itfile.DCTNone
	case "note":
		result.DCT = itfile.DCTNote
	case "sample":
		result.DCT = itfile.DCTSample
	case "instrument":
		result.DCT = itfile.DCTInstrument
	default:
		return result, fault.New(fmt.Sprintf("%s: unknown dct %q", inst.Name, inst.DCT))
	}
	switch inst.DCA {
	case "", "cut":
		result.DCA = itfile.DCACut
	case "off":
		result.DCA = itfile.DCAOff
	case "fade":
		result.DCA = itfile.DCAFade
	default:
		return result, fault.New(fmt.Sprintf("%s: unknown dca %q", inst.Name, inst.DCA))
	}

	result.VolumeEnvelope = inst.VolumeEnvelope.build()
	result.PanningEnvelope = inst.PanningEnvelope.build()
	result.PitchEnvelope = inst.PitchEnvelope.build()
	return result, nil
}

func (e *songEnvelope) build() itfile.Envelope {
	var env itfile.Envelope
	if e == nil || len(e.Nodes) == 0 {
		return env
	}
	env.Flags |= itfile.EnvelopeOn
	for _, n := range e.Nodes {
		env.Nodes = append(env.Nodes, itfile.EnvelopeNode{
			Tick:  uint16(n[0]),
			Value: int8(n[1]),
		})
	}
	if len(e.Loop) == 2 {
		env.Flags |= itfile.EnvelopeLoop
		env.LoopStart = uint8(e.Loop[0])
		env.LoopEnd = uint8(e.Loop[1])
	}
	if len(e.Sustain) == 2 {
		env.Flags |= itfile.EnvelopeSustain
		env.SustainStart = uint8(e.Sustain[0])
		env.SustainEnd = uint8(e.Sustain[1])
	}
	if e.Carry {
		env.Flags |= itfile.EnvelopeCarry
	}
	if e.Filter {
		env.Flags |= itfile.EnvelopeFilter
	}
	return env
}

func generateWave(smp songSample, rng *rand.Rand) ([]int16, error) {
	length := smp.Length
	if length <= 0 {
		length = 64
	}
	cycles := max(smp.Cycles, 1)
	pcm := make([]int16, length)
	for i := range pcm {
		phase := float64(i*cycles%length) / float64(length)
		var v float64
		switch smp.Wave {
		case "sine":
			v = math.Sin(2 * math.Pi * phase)
		case "square":
			v = 1
			if phase >= 0.5 {
				v = -1
			}
		case "saw":
			v = 2*phase - 1
		case "triangle":
			v = 4*math.Abs(phase-0.5) - 1
		case "noise":
			v = rng.Float64()*2 - 1
		default:
			return nil, fault.New(fmt.Sprintf("%s: unknown waveform %q", smp.Name, smp.Wave))
		}
		if smp.Decay {
			v *= math.Exp(-4 * float64(i) / float64(length))
		}
		pcm[i] = int16(v * 0.9 * 32767)
	}
	return pcm, nil
}
