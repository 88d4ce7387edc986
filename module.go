package itplay

import (
	"github.com/quasilyte/itplay/internal/itdb"
	"github.com/quasilyte/itplay/itfile"
)

// module is a compiled itfile.Module.
// It's immutable after the compilation, so it can be shared between
// the playback stream and the timing predictor.
type module struct {
	name string

	numChannels int

	orders       []uint8
	restartOrder int

	patterns []pattern

	instruments []itfile.Instrument
	samples     []itfile.Sample

	speed        int
	tempo        int
	globalVolume int

	channelPanning []int
	channelVolume  []int

	// These are counted once during the compilation.
	corruptCells           int
	disabledVolumeCommands int
}

type pattern struct {
	numRows int

	// cells is a dense numRows*numChannels grid.
	cells []patternCell
}

func (p *pattern) row(i, numChannels int) []patternCell {
	offset := i * numChannels
	return p.cells[offset : offset+numChannels]
}

type patternCell struct {
	raw itfile.Cell

	vol itdb.Effect
	fx  itdb.Effect
}

func (c *patternCell) IsEmpty() bool {
	return c.raw.IsEmpty()
}

func (m *module) isPlayableOrder(i int) bool {
	if i < 0 || i >= len(m.orders) {
		return false
	}
	return int(m.orders[i]) < len(m.patterns)
}

func (m *module) validatePosition(order, row int) error {
	if order < 0 || order >= len(m.orders) {
		return programmerErrorf("order %d is out of range [0, %d)", order, len(m.orders))
	}
	if row < 0 {
		return programmerErrorf("negative row %d", row)
	}
	if m.isPlayableOrder(order) {
		numRows := m.patterns[m.orders[order]].numRows
		if row >= numRows {
			return programmerErrorf("row %d is out of range [0, %d)", row, numRows)
		}
	}
	return nil
}
