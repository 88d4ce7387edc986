package itplay

import (
	"math"
)

// StreamEventKind is an event tag that should be used to differentiate between different event types.
// See StreamEvent docs for more info.
type StreamEventKind int

const (
	// EventUnknown is a sentinel value.
	// You should never receive an event of this kind.
	EventUnknown StreamEventKind = iota

	// EventNote is emitted every time a channel starts to play some note,
	// including the retriggers.
	//
	// Use StreamEvent.NoteEventData to get the event data.
	EventNote

	// EventSync tells the application to reset its time counter to zero.
	// It's emitted on Rewind.
	EventSync

	// EventMarker is emitted for every Zxx sync marker on a played row.
	//
	// Use StreamEvent.MarkerEventData to get the marker value.
	EventMarker

	// EventLoop is emitted when the song wraps around or jumps backwards.
	EventLoop
)

func (k StreamEventKind) String() string {
	switch k {
	case EventNote:
		return "note"
	case EventSync:
		return "sync"
	case EventMarker:
		return "marker"
	case EventLoop:
		return "loop"
	default:
		return "unknown"
	}
}

// StreamEvent holds a single Stream event data.
// This object is an argument to the Stream.SetEventHandler function.
//
// To handle the event correctly, you must first check its kind.
//
// Every event has a Time value. This is a moment when this event happened in
// relation to the stream start (in seconds), as measured by the rendered frames.
type StreamEvent struct {
	Kind StreamEventKind

	// Channel is a logical channel index.
	// Some events are channel-independent.
	Channel int

	// Time represents the playback offset in seconds.
	Time float64

	value uint64
}

func packNoteEvent(note uint8, instrument int, vol float32) uint64 {
	instBits := uint64(255)
	if instrument > 0 && instrument < 255 {
		instBits = uint64(instrument)
	}
	return uint64(note) | instBits<<8 | uint64(math.Float32bits(vol))<<16
}

// NoteEventData returns the event data if e.Kind=EventNote.
// The return values are: note, instrument (1-based), volume in [0, 1].
// If there is no instrument, -1 is returned.
func (e StreamEvent) NoteEventData() (note, instrument int, vol float32) {
	noteBits := e.value & 0xff
	instrumentBits := (e.value >> 8) & 0xff
	volBits := e.value >> 16
	instrumentID := int(instrumentBits)
	if instrumentID == 255 {
		instrumentID = -1
	}
	return int(noteBits), instrumentID, math.Float32frombits(uint32(volBits))
}

// MarkerEventData returns the marker value if e.Kind=EventMarker.
func (e StreamEvent) MarkerEventData() int {
	return int(e.value)
}
