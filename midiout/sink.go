// Package midiout mirrors the module playback as MIDI messages.
//
// Every logical channel is mapped to a MIDI channel (modulo 16).
// The logical channels are monophonic here: a new note on a logical channel
// releases the previous one, whatever the instrument NNA says.
// Logical channels that share a MIDI channel share its keys too:
// a key is released only after every logical channel that holds it lets it go.
package midiout

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/quasilyte/itplay"
	"github.com/quasilyte/itplay/itfile"
)

// bendRange is a pitch bend range in semitones (the General MIDI default).
const bendRange = 2

// Control change numbers.
const (
	ccVolume = 7
	ccPan    = 10
)

// Sink is an itplay.VoiceSink that converts voice commands into MIDI messages.
type Sink struct {
	send     func(midi.Message) error
	channels []channelState

	// keys counts the holders of every key of every MIDI channel.
	keys [16][128]uint8

	err    error
	errors int
}

type channelState struct {
	midiChannel uint8

	sounding  bool
	key       uint8
	basePitch int

	program int
	volume  int
	pan     int
	bend    int16
}

// NewSink creates a sink for a module with numChannels logical channels.
// send is called for every produced message; it can be a gomidi.SendTo result.
func NewSink(numChannels int, send func(midi.Message) error) *Sink {
	s := &Sink{
		send:     send,
		channels: make([]channelState, numChannels),
	}
	for i := range s.channels {
		s.channels[i] = channelState{
			midiChannel: uint8(i % 16),
			program:     -1,
			volume:      -1,
			pan:         -1,
		}
	}
	return s
}

// Err returns the first send error, if any.
// The sink keeps working after the send errors.
func (s *Sink) Err() error { return s.err }

// NumErrors returns the number of failed send calls.
func (s *Sink) NumErrors() int { return s.errors }

func (s *Sink) emit(msg midi.Message) {
	if err := s.send(msg); err != nil {
		if s.err == nil {
			s.err = err
		}
		s.errors++
	}
}

// AllNotesOff releases every sounding note.
func (s *Sink) AllNotesOff() {
	for i := range s.channels {
		s.noteOff(&s.channels[i])
	}
}

func (s *Sink) noteOff(ch *channelState) {
	if !ch.sounding {
		return
	}
	ch.sounding = false
	holders := &s.keys[ch.midiChannel][ch.key]
	*holders--
	if *holders == 0 {
		s.emit(midi.NoteOff(ch.midiChannel, ch.key))
	}
}

func (s *Sink) channel(id itplay.ChannelID) *channelState {
	if int(id) < 0 || int(id) >= len(s.channels) {
		return nil
	}
	return &s.channels[id]
}

func (s *Sink) NoteOn(n itplay.NoteOn) itplay.VoiceHandle {
	ch := s.channel(n.Channel)
	if ch == nil {
		return itplay.NoVoice
	}
	s.noteOff(ch)

	if program := (n.Instrument - 1) & 0x7f; program != ch.program {
		ch.program = program
		s.emit(midi.ProgramChange(ch.midiChannel, uint8(program)))
	}

	key := n.Note
	if entry := n.Inst.Keymap[n.Note]; entry.Note < itfile.NumNotes {
		key = entry.Note
	}
	ch.key = min(key, 127)
	ch.basePitch = int(key) * 64
	ch.sounding = true
	s.keys[ch.midiChannel][ch.key]++

	velocity := uint8(min(int(n.Smp.DefaultVolume)*2, 127))
	if velocity == 0 {
		velocity = 1
	}
	s.emit(midi.NoteOn(ch.midiChannel, ch.key, velocity))
	return itplay.NoVoice
}

func (s *Sink) Release(id itplay.ChannelID, action itplay.ReleaseAction) {
	if ch := s.channel(id); ch != nil {
		s.noteOff(ch)
	}
}

func (s *Sink) PastNotes(id itplay.ChannelID, action itplay.ReleaseAction) {}

func (s *Sink) SetNewNoteAction(id itplay.ChannelID, nna itfile.NewNoteAction) {}

func (s *Sink) Retrigger(id itplay.ChannelID, offset int) {
	ch := s.channel(id)
	if ch == nil || !ch.sounding {
		return
	}
	s.emit(midi.NoteOff(ch.midiChannel, ch.key))
	s.emit(midi.NoteOn(ch.midiChannel, ch.key, 100))
}

func (s *Sink) SetEnvelopePosition(id itplay.ChannelID, tick int) {}

func (s *Sink) Update(id itplay.ChannelID, out itplay.ChannelOutput) bool {
	ch := s.channel(id)
	if ch == nil {
		return false
	}

	volume := out.Volume * out.ChannelVolume * 127 / (64 * 64)
	if out.Muted {
		volume = 0
	}
	if volume != ch.volume {
		ch.volume = volume
		s.emit(midi.ControlChange(ch.midiChannel, ccVolume, uint8(volume)))
	}

	pan := min(out.Pan*2, 127)
	if pan != ch.pan {
		ch.pan = pan
		s.emit(midi.ControlChange(ch.midiChannel, ccPan, uint8(pan)))
	}

	if ch.sounding {
		if bend := pitchBend(out.Pitch - ch.basePitch); bend != ch.bend {
			ch.bend = bend
			s.emit(midi.Pitchbend(ch.midiChannel, bend))
		}
	}

	return true
}

func (s *Sink) EndTick(globalVolume int) {}

// pitchBend converts the linear pitch delta (64 units per semitone)
// into a 14-bit signed bend value.
func pitchBend(delta int) int16 {
	v := delta * 8192 / (bendRange * 64)
	return int16(max(-8192, min(v, 8191)))
}
