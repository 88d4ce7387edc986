package itplay

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
)

// Error kinds attached to the errors returned by this package.
// Use ErrorKind to extract them.
const (
	// KindInvalidModule is used when a module can't be played at all.
	KindInvalidModule ftag.Kind = "invalid_module"

	// KindProgrammerError is used for invalid API usage,
	// like an out of range channel index.
	KindProgrammerError ftag.Kind = "programmer_error"

	// KindDataCorruption marks malformed input fragments.
	// The player itself never returns it (it absorbs the corrupted data),
	// but the module loading helpers do.
	KindDataCorruption ftag.Kind = "data_corruption"

	// KindResourceExhaustion is never returned; the voice pool
	// overflows are counted in Diagnostics.
	KindResourceExhaustion ftag.Kind = "resource_exhaustion"
)

// ErrorKind returns the error kind tag, if any.
func ErrorKind(err error) ftag.Kind {
	return ftag.Get(err)
}

func invalidModuleErrorf(format string, args ...any) error {
	return fault.New(fmt.Sprintf(format, args...), ftag.With(KindInvalidModule))
}

func programmerErrorf(format string, args ...any) error {
	return fault.New(fmt.Sprintf(format, args...), ftag.With(KindProgrammerError))
}

// Diagnostics counts the faults that were absorbed during the playback.
type Diagnostics struct {
	// DroppedNotes is a number of notes that didn't get a physical voice.
	DroppedNotes int

	// IgnoredNotes is a number of notes that had no playable sample.
	IgnoredNotes int

	// CorruptCells is a number of cells that referenced
	// non-existing instruments or channels or had an invalid note.
	CorruptCells int

	// SkippedOrders counts the order entries that pointed to missing patterns.
	SkippedOrders int

	// DisabledVolumeCommands counts the out of range volume column values.
	DisabledVolumeCommands int
}
