package itfile

import (
	"fmt"
	"strings"
)

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// NoteName formats a note byte the way trackers display it: "C-5", "===" etc.
func NoteName(n uint8) string {
	switch n {
	case NoteOff:
		return "==="
	case NoteCut:
		return "^^^"
	case NoteFade:
		return "~~~"
	}
	if n >= NumNotes {
		return "???"
	}
	return fmt.Sprintf("%s%d", noteNames[n%12], n/12)
}

// ParseNote is a NoteName inverse.
func ParseNote(s string) (uint8, error) {
	switch s {
	case "===":
		return NoteOff, nil
	case "^^^":
		return NoteCut, nil
	case "~~~":
		return NoteFade, nil
	}
	if len(s) != 3 {
		return 0, fmt.Errorf("invalid note %q", s)
	}
	for i, name := range noteNames {
		if !strings.EqualFold(s[:2], name) {
			continue
		}
		octave := s[2]
		if octave < '0' || octave > '9' {
			return 0, fmt.Errorf("invalid note %q octave", s)
		}
		return uint8(int(octave-'0')*12 + i), nil
	}
	return 0, fmt.Errorf("invalid note %q", s)
}

// EffectString formats the cell effect column, like "D0F".
// An empty effect column is formatted as "...".
func (c *Cell) EffectString() string {
	if !c.Mask.Has(CellEffect) || c.Command == CmdNone {
		return "..."
	}
	var letter byte
	switch {
	case c.Command <= CmdZ:
		letter = 'A' + c.Command - CmdA
	case c.Command == CmdEnvelopePosition:
		letter = '\\'
	default:
		letter = '?'
	}
	return fmt.Sprintf("%c%02X", letter, c.Param)
}
