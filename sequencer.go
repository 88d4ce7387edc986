package itplay

import (
	"log/slog"

	"github.com/quasilyte/itplay/internal/itdb"
	"github.com/quasilyte/itplay/itfile"
)

const (
	minTempo = 32
	maxTempo = 255
)

// TickEvent describes a single simulated tick.
type TickEvent struct {
	// Order, Row and Tick is a position of this tick.
	Order int
	Row   int
	Tick  int

	// NewRow is set when the row cells were loaded on this tick.
	NewRow bool

	// RowRepeat is set on the first tick of a row repeated by the pattern delay.
	RowRepeat bool

	// Looped is set when this row was reached by wrapping the song
	// or by jumping backwards.
	Looped bool

	// Ended is set when there is nothing left to play.
	// All other fields are meaningless in this case.
	Ended bool

	Speed        int
	Tempo        int
	GlobalVolume int

	// SamplePos is a tick start time measured in output frames.
	SamplePos int64

	// Samples is the tick duration in output frames.
	Samples int

	// SyncMarkers lists the sync marker IDs found on a new row.
	// The slice is only valid until the next Advance call.
	SyncMarkers []int
}

// sequencer is the song position clock.
// It interprets the global commands and knows nothing about voices.
type sequencer struct {
	mod *module
	pat *pattern

	order int
	row   int
	tick  int

	speed        int
	tempo        int
	globalVolume int

	// tempoSlide is a tempo change applied on every non-first tick.
	tempoSlide int

	// rowTicks is a current row length in ticks, including the fine pattern delay.
	rowTicks int

	// delayRows is a number of remaining row repetitions.
	delayRows int
	repeat    bool

	// Pending position changes; -1 means "none".
	jumpOrder int
	jumpRow   int
	loopRow   int

	needRow bool

	// fresh is set after a position reset, the next row is loaded as is.
	fresh bool

	looped      bool
	ended       bool
	loopEnabled bool

	channels []sequencerChannel

	timer     tickTimer
	samplePos int64

	syncMarkers []int

	diag   *Diagnostics
	logger *slog.Logger
}

type sequencerChannel struct {
	loopStart int
	loopCount int

	tempoMemory uint8

	globalVolumeSlideMemory uint8

	// globalVolumeSlide is an active W parameter for the current row.
	globalVolumeSlide uint8
}

func (s *sequencer) init(mod *module, config *SimulationConfig, diag *Diagnostics) {
	*s = sequencer{
		mod:         mod,
		channels:    make([]sequencerChannel, mod.numChannels),
		timer:       newTickTimer(config.SampleRate, config.TimerPrecision),
		loopEnabled: !config.NoLoop,
		diag:        diag,
		logger:      config.Logger,
		syncMarkers: make([]int, 0, 4),
	}
	s.reset(config)
}

func (s *sequencer) reset(config *SimulationConfig) {
	s.speed = s.mod.speed
	if config.Speed != 0 {
		s.speed = clamp(config.Speed, 1, 255)
	}
	s.tempo = s.mod.tempo
	if config.Tempo != 0 {
		s.tempo = clamp(config.Tempo, minTempo, maxTempo)
	}
	s.globalVolume = s.mod.globalVolume
	s.timer.reset()
	s.samplePos = 0
	s.looped = false
	s.ended = false
	s.setPosition(0, 0)
}

func (s *sequencer) setPosition(order, row int) {
	s.order = order
	s.row = row
	s.tick = 0
	s.pat = nil
	s.fresh = true
	s.needRow = true
	s.ended = false
	s.repeat = false
	s.delayRows = 0
	s.tempoSlide = 0
	s.clearPendingJumps()
	s.resetLoops()
}

func (s *sequencer) clearPendingJumps() {
	s.jumpOrder = -1
	s.jumpRow = -1
	s.loopRow = -1
}

func (s *sequencer) resetLoops() {
	for i := range s.channels {
		ch := &s.channels[i]
		ch.loopStart = 0
		ch.loopCount = 0
	}
}

func (s *sequencer) currentRow() []patternCell {
	return s.pat.row(s.row, s.mod.numChannels)
}

// beginTick advances the clock state before the channels are processed.
// It returns false when the song is over.
func (s *sequencer) beginTick(ev *TickEvent) bool {
	if s.ended {
		return false
	}

	switch {
	case s.needRow:
		if !s.loadRow(ev) {
			s.ended = true
			return false
		}
		ev.NewRow = true
	case s.tick == 0 && s.repeat:
		ev.RowRepeat = true
		s.applyFineGlobalEffects()
	default:
		s.applyGlobalTickEffects()
	}

	ev.Order = s.order
	ev.Row = s.row
	ev.Tick = s.tick
	ev.Speed = s.speed
	ev.Tempo = s.tempo
	ev.GlobalVolume = s.globalVolume
	return true
}

// endTick measures the tick duration and moves the tick cursor.
func (s *sequencer) endTick(ev *TickEvent) {
	ev.Samples = s.timer.next(s.tempo)
	ev.SamplePos = s.samplePos
	s.samplePos += int64(ev.Samples)

	s.tick++
	if s.tick < s.rowTicks {
		return
	}
	s.tick = 0
	if s.delayRows > 0 {
		s.delayRows--
		s.repeat = true
		return
	}
	s.repeat = false
	s.needRow = true
}

func (s *sequencer) loadRow(ev *TickEvent) bool {
	order := s.order
	row := s.row
	backwards := false

	switch {
	case s.fresh:
		// Use the position as is.
	case s.loopRow >= 0:
		row = s.loopRow
	case s.jumpOrder >= 0:
		backwards = s.jumpOrder <= order
		order = s.jumpOrder
		row = clampMin(s.jumpRow, 0)
	default:
		row++
		if row >= s.pat.numRows {
			order++
			row = 0
		}
	}
	s.clearPendingJumps()

	prevOrder := s.order
	order, wrapped, ok := s.resolveOrder(order)
	if !ok {
		return false
	}
	if s.fresh {
		wrapped = false
		backwards = false
	}
	looped := wrapped || backwards
	if looped {
		if !s.loopEnabled {
			return false
		}
		s.looped = true
		ev.Looped = true
	}

	if s.fresh || order != prevOrder || looped {
		s.resetLoops()
	}
	s.fresh = false

	s.pat = &s.mod.patterns[s.mod.orders[order]]
	if row >= s.pat.numRows {
		// A break to a row past the pattern end.
		row = 0
	}
	s.order = order
	s.row = row
	s.tick = 0
	s.needRow = false
	s.repeat = false

	s.applyRowGlobalEffects(ev)
	return true
}

// resolveOrder skips the order list entries that can't be played.
func (s *sequencer) resolveOrder(order int) (resolved int, wrapped, ok bool) {
	orders := s.mod.orders
	for attempts := 0; attempts <= 2*len(orders)+1; attempts++ {
		if order < 0 || order >= len(orders) || orders[order] == itfile.OrderEnd {
			order = s.mod.restartOrder
			wrapped = true
			continue
		}
		if orders[order] == itfile.OrderSkip {
			order++
			continue
		}
		if int(orders[order]) >= len(s.mod.patterns) {
			s.diag.SkippedOrders++
			s.logger.Debug("order references a missing pattern",
				slog.Int("order", order),
				slog.Int("pattern", int(orders[order])))
			order++
			continue
		}
		return order, wrapped, true
	}
	return 0, wrapped, false
}

func (s *sequencer) applyRowGlobalEffects(ev *TickEvent) {
	s.syncMarkers = s.syncMarkers[:0]
	s.tempoSlide = 0
	s.delayRows = 0
	delayRowsSet := false
	delayTicks := 0

	cells := s.currentRow()
	for i := range cells {
		fx := cells[i].fx
		ch := &s.channels[i]
		ch.globalVolumeSlide = 0
		if !fx.Op.IsGlobal() {
			continue
		}

		switch fx.Op {
		case itdb.EffectSetSpeed:
			if fx.Arg != 0 {
				s.speed = int(fx.Arg)
			}

		case itdb.EffectTempo:
			arg := fx.Arg
			if arg == 0 {
				arg = ch.tempoMemory
			}
			ch.tempoMemory = arg
			switch {
			case arg >= 0x20:
				s.tempo = int(arg)
			case arg>>4 == 0:
				s.tempoSlide = -int(arg & 0xf)
			default:
				s.tempoSlide = int(arg & 0xf)
			}

		case itdb.EffectPositionJump:
			s.jumpOrder = int(fx.Arg)
			if s.jumpRow < 0 {
				s.jumpRow = 0
			}

		case itdb.EffectPatternBreak:
			if s.jumpOrder < 0 {
				s.jumpOrder = s.order + 1
			}
			s.jumpRow = int(fx.Arg)

		case itdb.EffectPatternLoop:
			s.patternLoop(ch, int(fx.Arg))

		case itdb.EffectPatternDelayRows:
			if !delayRowsSet {
				s.delayRows = int(fx.Arg)
				delayRowsSet = true
			}

		case itdb.EffectPatternDelayTicks:
			delayTicks += int(fx.Arg)

		case itdb.EffectSetGlobalVolume:
			if fx.Arg <= 128 {
				s.globalVolume = int(fx.Arg)
			}

		case itdb.EffectGlobalVolumeSlide:
			arg := fx.Arg
			if arg == 0 {
				arg = ch.globalVolumeSlideMemory
			}
			ch.globalVolumeSlideMemory = arg
			ch.globalVolumeSlide = arg

		case itdb.EffectSyncMarker:
			s.syncMarkers = append(s.syncMarkers, int(fx.Arg))
		}
	}

	if s.loopRow >= 0 {
		// The pattern loop wins over the breaks and jumps of the same row.
		s.jumpOrder = -1
		s.jumpRow = -1
	}

	s.rowTicks = s.speed + delayTicks
	s.applyFineGlobalEffects()
	ev.SyncMarkers = s.syncMarkers
}

func (s *sequencer) patternLoop(ch *sequencerChannel, arg int) {
	if arg == 0 {
		ch.loopStart = s.row
		return
	}
	if ch.loopCount == 0 {
		ch.loopCount = arg
		s.loopRow = ch.loopStart
		return
	}
	ch.loopCount--
	if ch.loopCount > 0 {
		s.loopRow = ch.loopStart
		return
	}
	// The loop is over, a following loop-end can't jump back here.
	ch.loopStart = s.row + 1
}

func (s *sequencer) applyFineGlobalEffects() {
	for i := range s.channels {
		ch := &s.channels[i]
		if ch.globalVolumeSlide != 0 {
			s.globalVolume = slideParam(s.globalVolume, ch.globalVolumeSlide, true, 128)
		}
	}
}

func (s *sequencer) applyGlobalTickEffects() {
	if s.tempoSlide != 0 {
		s.tempo = clamp(s.tempo+s.tempoSlide, minTempo, maxTempo)
	}
	for i := range s.channels {
		ch := &s.channels[i]
		if ch.globalVolumeSlide != 0 {
			s.globalVolume = slideParam(s.globalVolume, ch.globalVolumeSlide, false, 128)
		}
	}
}

// globalVolumeSlideDirection is used for the display purposes.
func (s *sequencer) globalVolumeSlideDirection() int {
	for i := range s.channels {
		if dir := slideDirection(s.channels[i].globalVolumeSlide); dir != 0 {
			return dir
		}
	}
	return 0
}
