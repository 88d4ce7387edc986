package itplay

import (
	"github.com/quasilyte/itplay/itfile"
)

// envelopeCursor is a per-voice envelope playback position.
type envelopeCursor struct {
	tick int

	// finished is set when the cursor reached the last node
	// and there is no loop to follow.
	finished bool
}

func (c *envelopeCursor) setTick(tick int) {
	c.tick = tick
	c.finished = false
}

// step returns the envelope value at the cursor and moves it one tick forward.
//
// While the key is held, the sustain loop has a priority over the regular loop.
// After the release only the regular loop is followed.
func (c *envelopeCursor) step(env *itfile.Envelope, keyOn bool) int {
	v := EnvelopeValue(env, c.tick)
	c.advance(env, keyOn)
	return v
}

func (c *envelopeCursor) advance(env *itfile.Envelope, keyOn bool) {
	nodes := env.Nodes
	last := int(nodes[len(nodes)-1].Tick)

	if c.finished {
		return
	}

	c.tick++

	if keyOn && env.Flags.SustainEnabled() {
		start := int(nodes[env.SustainStart].Tick)
		end := int(nodes[env.SustainEnd].Tick)
		if c.tick > end {
			c.tick = start
		}
		return
	}

	if env.Flags.LoopEnabled() {
		start := int(nodes[env.LoopStart].Tick)
		end := int(nodes[env.LoopEnd].Tick)
		if c.tick > end {
			c.tick = start
		}
		return
	}

	if c.tick >= last {
		c.tick = last
		c.finished = true
	}
}

// EnvelopeValue returns the envelope value at the given tick.
// The value between the nodes is linearly interpolated;
// before the first node and after the last one it's held constant.
func EnvelopeValue(env *itfile.Envelope, tick int) int {
	nodes := env.Nodes
	if len(nodes) == 0 {
		return 0
	}
	if tick <= int(nodes[0].Tick) {
		return int(nodes[0].Value)
	}
	for i := 1; i < len(nodes); i++ {
		b := nodes[i]
		if tick > int(b.Tick) {
			continue
		}
		a := nodes[i-1]
		span := int(b.Tick) - int(a.Tick)
		if span == 0 {
			return int(b.Value)
		}
		return int(a.Value) + (int(b.Value)-int(a.Value))*(tick-int(a.Tick))/span
	}
	return int(nodes[len(nodes)-1].Value)
}
