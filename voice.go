package itplay

import (
	"github.com/quasilyte/itplay/itfile"
)

// ChannelID is a logical (pattern) channel index.
type ChannelID int

// VoiceHandle identifies a physical voice.
//
// Handles are generation-checked: a handle of a reclaimed voice
// never resolves to the voice that reused the same slot.
type VoiceHandle struct {
	index int32
	gen   uint32
}

// NoVoice is a handle that never resolves to any voice.
var NoVoice = VoiceHandle{index: -1}

func (h VoiceHandle) IsValid() bool { return h.index >= 0 }

// ReleaseAction tells what happens to the voice that is being released.
type ReleaseAction uint8

const (
	ReleaseOff ReleaseAction = iota
	ReleaseCut
	ReleaseFade
)

// NoteOn describes a note trigger that needs a voice.
type NoteOn struct {
	Channel ChannelID

	// Note is the pattern note, before the keymap transposition.
	Note uint8

	// Instrument and Sample are 1-based indices.
	Instrument int
	Sample     int

	Inst *itfile.Instrument
	Smp  *itfile.Sample

	// Offset is a starting frame.
	Offset int
}

// ChannelOutput is what a logical channel asks its voice to play on this tick.
type ChannelOutput struct {
	// Pitch is a linear pitch (64 units per semitone, 0 is C-0),
	// including vibrato and arpeggio offsets.
	Pitch int

	// Volume is a note volume in [0, 64] after tremolo and tremor.
	Volume int

	// ChannelVolume is in [0, 64].
	ChannelVolume int

	// Pan is in [0, 64] after panbrello.
	Pan int

	Muted bool
}

// VoiceSink receives the voice-level commands produced by the simulation.
//
// The playback stream binds these commands to a physical voice pool,
// the timing predictor discards them, the MIDI mirror converts
// them to the MIDI messages.
type VoiceSink interface {
	// NoteOn allocates a voice for the channel.
	// The previous channel voice is handled according to the instrument NNA.
	NoteOn(n NoteOn) VoiceHandle

	// Release applies the action to the channel's foreground voice.
	Release(ch ChannelID, action ReleaseAction)

	// PastNotes applies the action to the background voices of the channel.
	PastNotes(ch ChannelID, action ReleaseAction)

	// SetNewNoteAction overrides the NNA of the channel's foreground voice.
	SetNewNoteAction(ch ChannelID, nna itfile.NewNoteAction)

	// Retrigger restarts the channel's foreground voice sample at the offset.
	Retrigger(ch ChannelID, offset int)

	// SetEnvelopePosition moves the envelope cursors of the channel's foreground voice.
	SetEnvelopePosition(ch ChannelID, tick int)

	// Update is called once per tick for every channel.
	// It returns false if the channel has no voice anymore.
	Update(ch ChannelID, out ChannelOutput) bool

	// EndTick is called after all channels are updated.
	// globalVolume is in [0, 128].
	EndTick(globalVolume int)
}

// nopSink is used for the side simulations that only need the timing.
type nopSink struct{}

func (nopSink) NoteOn(n NoteOn) VoiceHandle { return NoVoice }
func (nopSink) Release(ch ChannelID, action ReleaseAction) {}
func (nopSink) PastNotes(ch ChannelID, action ReleaseAction) {}
func (nopSink) SetNewNoteAction(ch ChannelID, nna itfile.NewNoteAction) {}
func (nopSink) Retrigger(ch ChannelID, offset int) {}
func (nopSink) SetEnvelopePosition(ch ChannelID, tick int) {}
func (nopSink) Update(ch ChannelID, out ChannelOutput) bool { return true }
func (nopSink) EndTick(globalVolume int) {}
