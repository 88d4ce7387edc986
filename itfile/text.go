package itfile

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCell parses a tracker-style textual cell: "C-5 01 64 D0F".
//
// The fields are note, instrument, volume column and effect;
// dots mean "empty". The instrument is decimal. The volume column is
// either a decimal volume (0..64), "pNN" for the panning (0..64)
// or "#NNN" for a raw volume byte. The effect is a letter
// followed by a hex parameter ('\' is the envelope position command).
//
// Missing trailing fields are treated as empty.
func ParseCell(s string) (Cell, error) {
	var c Cell
	fields := strings.Fields(s)
	if len(fields) > 4 {
		return c, fmt.Errorf("too many fields in cell %q", s)
	}
	for len(fields) < 4 {
		fields = append(fields, "")
	}

	if f := fields[0]; !isEmptyField(f) {
		note, err := ParseNote(f)
		if err != nil {
			return c, err
		}
		c.Note = note
		c.Mask |= CellNote
	}

	if f := fields[1]; !isEmptyField(f) {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil || v == 0 {
			return c, fmt.Errorf("invalid instrument %q", f)
		}
		c.Instrument = uint8(v)
		c.Mask |= CellInstrument
	}

	if f := fields[2]; !isEmptyField(f) {
		v, err := parseVolumeField(f)
		if err != nil {
			return c, err
		}
		c.Volume = v
		c.Mask |= CellVolume
	}

	if f := fields[3]; !isEmptyField(f) {
		if len(f) != 3 {
			return c, fmt.Errorf("invalid effect %q", f)
		}
		var cmd uint8
		switch letter := f[0]; {
		case letter >= 'A' && letter <= 'Z':
			cmd = CmdA + letter - 'A'
		case letter == '\\':
			cmd = CmdEnvelopePosition
		default:
			return c, fmt.Errorf("invalid effect %q command", f)
		}
		param, err := strconv.ParseUint(f[1:], 16, 8)
		if err != nil {
			return c, fmt.Errorf("invalid effect %q param", f)
		}
		c.Command = cmd
		c.Param = uint8(param)
		c.Mask |= CellEffect
	}

	return c, nil
}

func isEmptyField(f string) bool {
	return f == "" || strings.Trim(f, ".") == ""
}

func parseVolumeField(f string) (uint8, error) {
	switch {
	case f[0] == 'p':
		v, err := strconv.ParseUint(f[1:], 10, 8)
		if err != nil || v > 64 {
			return 0, fmt.Errorf("invalid panning %q", f)
		}
		return uint8(v) + 128, nil
	case f[0] == '#':
		v, err := strconv.ParseUint(f[1:], 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid volume byte %q", f)
		}
		return uint8(v), nil
	default:
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil || v > 64 {
			return 0, fmt.Errorf("invalid volume %q", f)
		}
		return uint8(v), nil
	}
}

// ParseRow parses the "|"-separated cells; the cell index is its channel.
// Empty cells are not added to the row.
func ParseRow(s string) (Row, error) {
	var row Row
	for i, part := range strings.Split(s, "|") {
		c, err := ParseCell(part)
		if err != nil {
			return row, fmt.Errorf("channel %d: %w", i, err)
		}
		if c.IsEmpty() {
			continue
		}
		c.Channel = uint8(i)
		row.Cells = append(row.Cells, c)
	}
	return row, nil
}

// String formats the cell in the ParseCell format.
func (c Cell) String() string {
	var sb strings.Builder

	if c.Mask.Has(CellNote) {
		sb.WriteString(NoteName(c.Note))
	} else {
		sb.WriteString("...")
	}

	if c.Mask.Has(CellInstrument) {
		fmt.Fprintf(&sb, " %02d", c.Instrument)
	} else {
		sb.WriteString(" ..")
	}

	switch {
	case !c.Mask.Has(CellVolume):
		sb.WriteString(" ..")
	case c.Volume <= 64:
		fmt.Fprintf(&sb, " %02d", c.Volume)
	case c.Volume >= 128 && c.Volume <= 192:
		fmt.Fprintf(&sb, " p%02d", c.Volume-128)
	default:
		fmt.Fprintf(&sb, " #%03d", c.Volume)
	}

	sb.WriteByte(' ')
	sb.WriteString(c.EffectString())
	return sb.String()
}
