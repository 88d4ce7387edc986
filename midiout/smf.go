package midiout

import (
	"io"
	"log/slog"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/quasilyte/itplay"
	"github.com/quasilyte/itplay/itfile"
)

const (
	// ticksPerQuarter is the SMF time resolution.
	ticksPerQuarter = 960

	// The file tempo is fixed, the module tempo changes are
	// baked into the event times.
	fileBPM = 120

	midiTicksPerSecond = ticksPerQuarter * fileBPM / 60
)

// ExportConfig configures the Standard MIDI File export.
type ExportConfig struct {
	// SampleRate is only used for the tick timer.
	// A zero value means 44100.
	SampleRate int

	// MaxTicks limits the song length in module ticks.
	// A zero value means 1<<20.
	MaxTicks int

	Logger *slog.Logger
}

// ExportSMF plays the module once (until the end or the first loop)
// and writes its note activity as a single-track SMF.
func ExportSMF(w io.Writer, m *itfile.Module, config ExportConfig) error {
	if config.MaxTicks == 0 {
		config.MaxTicks = 1 << 20
	}

	rec := &recorder{}
	sink := NewSink(m.NumChannels, rec.add)
	sim, err := itplay.NewSimulation(m, sink, itplay.SimulationConfig{
		SampleRate: config.SampleRate,
		NoLoop:     true,
		Logger:     config.Logger,
	})
	if err != nil {
		return err
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}

	numTicks := 0
	var pos int64
	for numTicks < config.MaxTicks {
		rec.now = pos * midiTicksPerSecond / int64(sampleRate)
		ev := sim.Advance()
		if ev.Ended {
			break
		}
		pos += int64(ev.Samples)
		numTicks++
	}
	rec.now = pos * midiTicksPerSecond / int64(sampleRate)
	sink.AllNotesOff()
	if err := sink.Err(); err != nil {
		return err
	}

	var track smf.Track
	if m.Name != "" {
		track.Add(0, smf.MetaTrackSequenceName(m.Name))
	}
	track.Add(0, smf.MetaTempo(fileBPM))
	var prev int64
	for _, e := range rec.events {
		track.Add(uint32(e.at-prev), e.msg)
		prev = e.at
	}
	track.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := file.Add(track); err != nil {
		return fault.Wrap(err, fmsg.With("build midi track"))
	}
	if _, err := file.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("write midi file"))
	}
	return nil
}

type recordedEvent struct {
	at  int64
	msg midi.Message
}

type recorder struct {
	now    int64
	events []recordedEvent
}

func (r *recorder) add(msg midi.Message) error {
	r.events = append(r.events, recordedEvent{at: r.now, msg: msg})
	return nil
}
