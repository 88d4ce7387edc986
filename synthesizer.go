package itplay

import (
	"github.com/quasilyte/itplay/itfile"
)

// Synthesizer can be used to play individual instrument notes.
//
// It is more efficient and convenient to use for this
// use case than a stream with a constant module re-loading.
// The notes go through the same voice allocator as the module playback,
// so the instrument NNA and envelopes work as usual.
type Synthesizer struct {
	stream *Stream

	numChannels    int
	numInstruments int
}

type SynthesizerConfig struct {
	// NumChannels is a number of notes that can be controlled independently.
	// A zero value means 8.
	NumChannels int
}

func NewSynthesizer(config SynthesizerConfig) *Synthesizer {
	if config.NumChannels <= 0 {
		config.NumChannels = 8
	}
	return &Synthesizer{
		stream:      NewStream(),
		numChannels: config.NumChannels,
	}
}

// SetVolume adjusts the global volume scaling for the underlying stream.
func (s *Synthesizer) SetVolume(v float64) {
	s.stream.SetVolume(v)
}

// LoadInstruments prepares the instruments from the module
// for further use.
//
// The patterns don't really matter as this method
// is only interested in instruments (and samples).
func (s *Synthesizer) LoadInstruments(m *itfile.Module, config LoadModuleConfig) error {
	instOnly := itfile.Module{
		Name:         m.Name,
		NumChannels:  s.numChannels,
		Orders:       []uint8{0},
		Patterns:     []itfile.Pattern{{}},
		Instruments:  m.Instruments,
		Samples:      m.Samples,
		GlobalVolume: m.GlobalVolume,
	}
	config.NoLoop = false
	if err := s.stream.LoadModule(&instOnly, config); err != nil {
		return err
	}
	s.numInstruments = len(m.Instruments)
	return nil
}

// PlayNote starts the note on the synthesizer channel.
// The note starts at the next tick boundary.
//
// instrument is a 1-based index.
func (s *Synthesizer) PlayNote(ch int, note uint8, instrument int) error {
	if err := s.checkChannel(ch); err != nil {
		return err
	}
	if note >= itfile.NumNotes {
		return programmerErrorf("invalid note %d", note)
	}
	if instrument <= 0 || instrument > s.numInstruments {
		return programmerErrorf("instrument %d is out of range [1, %d]", instrument, s.numInstruments)
	}
	s.stream.pushControl(streamControl{
		kind:       controlNoteOn,
		ch:         ch,
		note:       note,
		instrument: instrument,
	})
	return nil
}

// StopNote sends a note-off to the synthesizer channel.
func (s *Synthesizer) StopNote(ch int) error {
	if err := s.checkChannel(ch); err != nil {
		return err
	}
	s.stream.pushControl(streamControl{kind: controlNoteOff, ch: ch})
	return nil
}

func (s *Synthesizer) checkChannel(ch int) error {
	if s.stream.mod == nil {
		return programmerErrorf("synthesizer has no instruments loaded")
	}
	if ch < 0 || ch >= s.numChannels {
		return programmerErrorf("channel %d is out of range [0, %d)", ch, s.numChannels)
	}
	return nil
}

// ActiveVoices returns the number of sounding voices as of the last rendered tick.
func (s *Synthesizer) ActiveVoices() int {
	return s.stream.GetGlobalInfo().ActiveVoices
}

func (s *Synthesizer) Read(b []byte) (int, error) {
	return s.stream.Read(b)
}

func (s *Synthesizer) Rewind() {
	s.stream.Rewind()
}

func (s *Synthesizer) Seek(offset int64, whence int) (int64, error) {
	return s.stream.Seek(offset, whence)
}

func (s *Synthesizer) Close() error {
	return s.stream.Close()
}
