package itplay

const (
	defaultTimerPrecision = 16
	maxTimerPrecision     = 32
)

// tickTimer converts ticks into output frames.
//
// A tick lasts 2.5/tempo seconds. The frame count is rarely an integer,
// so the fractional part is carried over to the next tick
// in a fixed-point accumulator.
type tickTimer struct {
	sampleRate uint64
	precision  uint
	frac       uint64
}

func newTickTimer(sampleRate int, precision uint) tickTimer {
	return tickTimer{
		sampleRate: uint64(sampleRate),
		precision:  precision,
	}
}

func (t *tickTimer) reset() {
	t.frac = 0
}

// step returns a fixed-point frames per tick value.
func (t *tickTimer) step(tempo int) uint64 {
	return (t.sampleRate * 5 << t.precision) / uint64(tempo*2)
}

// next returns the number of whole frames the next tick lasts.
func (t *tickTimer) next(tempo int) int {
	t.frac += t.step(tempo)
	n := t.frac >> t.precision
	t.frac &= (1 << t.precision) - 1
	return int(n)
}
