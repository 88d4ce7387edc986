package itfile

import (
	"fmt"
)

// DefaultNumRows is a row count used for patterns that have no data at all.
const DefaultNumRows = 64

// maxPackedChannels is a number of channels the packed encoding can address.
const maxPackedChannels = 64

// DecodePackedPattern decodes an IT-style packed pattern stream.
//
// Every row is a sequence of channel entries terminated by a zero byte.
// A channel byte with the bit 7 set is followed by a new mask byte,
// otherwise the last mask of that channel is reused.
// Mask bits 0-3 tell that the note, instrument, volume and command are
// stored explicitly; bits 4-7 reuse the last values of that channel.
//
// The decoding is tolerant: if the data ends prematurely, all complete rows
// are kept, the remaining rows are left empty and a *ParseError is returned
// along with the partially decoded pattern.
func DecodePackedPattern(data []byte, numRows int) (Pattern, error) {
	d := newPatternDecoder()
	return d.Decode(data, numRows)
}

type patternDecoder struct {
	data   []byte
	offset int

	cellPool objectPool[Cell]
	rowPool  objectPool[Row]

	scratch []Cell

	last [maxPackedChannels]Cell

	lastMask [maxPackedChannels]uint8

	rowIndex int
}

func newPatternDecoder() *patternDecoder {
	d := &patternDecoder{
		scratch: make([]Cell, 0, maxPackedChannels),
	}
	initObjectPool(&d.cellPool, 1024)
	initObjectPool(&d.rowPool, 256)
	return d
}

func (d *patternDecoder) Decode(data []byte, numRows int) (pat Pattern, err error) {
	d.data = data
	d.offset = 0
	d.rowIndex = 0
	d.last = [maxPackedChannels]Cell{}
	d.lastMask = [maxPackedChannels]uint8{}

	if numRows <= 0 {
		numRows = DefaultNumRows
	}
	pat.Rows = d.rowPool.MakeSlice(numRows)

	defer func() {
		rv := recover()
		if rv == nil {
			return
		}
		parseErr, ok := rv.(*ParseError)
		if !ok {
			panic(rv)
		}
		// Rows that were not decoded stay empty.
		for i := d.rowIndex; i < len(pat.Rows); i++ {
			pat.Rows[i] = Row{}
		}
		err = parseErr
	}()

	for d.rowIndex < numRows {
		if d.offset >= len(d.data) {
			// Some encoders omit the trailing empty rows.
			break
		}
		pat.Rows[d.rowIndex] = d.decodeRow()
		d.rowIndex++
	}

	return pat, nil
}

func (d *patternDecoder) decodeRow() Row {
	cells := d.scratch[:0]
	for {
		b := d.readByte("channel byte")
		if b == 0 {
			break
		}
		ch := (b - 1) & 63

		mask := d.lastMask[ch]
		if b&0x80 != 0 {
			mask = d.readByte("channel mask")
			d.lastMask[ch] = mask
		}

		last := &d.last[ch]
		c := Cell{Channel: ch}
		if mask&0x01 != 0 {
			last.Note = d.readByte("note")
		}
		if mask&0x02 != 0 {
			last.Instrument = d.readByte("instrument")
		}
		if mask&0x04 != 0 {
			last.Volume = d.readByte("volume")
		}
		if mask&0x08 != 0 {
			last.Command = d.readByte("command")
			last.Param = d.readByte("command param")
		}
		if mask&(0x01|0x10) != 0 {
			c.Mask |= CellNote
			c.Note = last.Note
		}
		if mask&(0x02|0x20) != 0 {
			c.Mask |= CellInstrument
			c.Instrument = last.Instrument
		}
		if mask&(0x04|0x40) != 0 {
			c.Mask |= CellVolume
			c.Volume = last.Volume
		}
		if mask&(0x08|0x80) != 0 {
			c.Mask |= CellEffect
			c.Command = last.Command
			c.Param = last.Param
		}

		cells = appendCell(cells, c)
	}

	if len(cells) == 0 {
		return Row{}
	}
	row := Row{Cells: d.cellPool.MakeSlice(len(cells))}
	copy(row.Cells, cells)
	return row
}

// appendCell keeps the first entry for every channel.
func appendCell(cells []Cell, c Cell) []Cell {
	for i := range cells {
		if cells[i].Channel == c.Channel {
			return cells
		}
	}
	return append(cells, c)
}

func (d *patternDecoder) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf("row %d: ", d.rowIndex) + fmt.Sprintf(format, args...),
		Offset:  d.offset,
	}
}

func (d *patternDecoder) readByte(what string) uint8 {
	if d.offset >= len(d.data) {
		panic(d.errorf("unexpected EOF while reading %s", what))
	}
	v := d.data[d.offset]
	d.offset++
	return v
}

// EncodePackedPattern is a DecodePackedPattern inverse.
//
// It always writes explicit masks, so the output is not the most compact one.
// Cells addressing channels beyond the packed encoding limits are skipped.
func EncodePackedPattern(p Pattern) []byte {
	var out []byte
	for _, row := range p.Rows {
		for _, c := range row.Cells {
			if int(c.Channel) >= maxPackedChannels || c.Mask == 0 {
				continue
			}
			var mask uint8
			if c.Mask.Has(CellNote) {
				mask |= 0x01
			}
			if c.Mask.Has(CellInstrument) {
				mask |= 0x02
			}
			if c.Mask.Has(CellVolume) {
				mask |= 0x04
			}
			if c.Mask.Has(CellEffect) {
				mask |= 0x08
			}
			out = append(out, (c.Channel+1)|0x80, mask)
			if mask&0x01 != 0 {
				out = append(out, c.Note)
			}
			if mask&0x02 != 0 {
				out = append(out, c.Instrument)
			}
			if mask&0x04 != 0 {
				out = append(out, c.Volume)
			}
			if mask&0x08 != 0 {
				out = append(out, c.Command, c.Param)
			}
		}
		out = append(out, 0)
	}
	return out
}
