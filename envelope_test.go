package itplay

import (
	"fmt"
	"testing"

	"github.com/quasilyte/itplay/itfile"
)

func TestEnvelopeValue(t *testing.T) {
	env := &itfile.Envelope{
		Nodes: []itfile.EnvelopeNode{
			{Tick: 0, Value: 0},
			{Tick: 10, Value: 64},
			{Tick: 20, Value: 32},
		},
	}
	tests := []struct {
		tick int
		want int
	}{
		{-5, 0},
		{0, 0},
		{5, 32},
		{9, 57},
		{10, 64},
		{15, 48},
		{20, 32},
		{100, 32},
	}
	for _, test := range tests {
		if have := EnvelopeValue(env, test.tick); have != test.want {
			t.Errorf("EnvelopeValue(%d) = %d, want %d", test.tick, have, test.want)
		}
	}

	if have := EnvelopeValue(&itfile.Envelope{}, 10); have != 0 {
		t.Errorf("empty envelope value is %d", have)
	}
}

// stepEnvelope collects n cursor values.
func stepEnvelope(c *envelopeCursor, env *itfile.Envelope, keyOn bool, n int) []int {
	values := make([]int, n)
	for i := range values {
		values[i] = c.step(env, keyOn)
	}
	return values
}

func testEnvelope(flags itfile.EnvelopeFlags) *itfile.Envelope {
	return &itfile.Envelope{
		Nodes: []itfile.EnvelopeNode{
			{Tick: 0, Value: 64},
			{Tick: 4, Value: 32},
			{Tick: 8, Value: 16},
			{Tick: 12, Value: 0},
		},
		Flags:        itfile.EnvelopeOn | flags,
		LoopStart:    1,
		LoopEnd:      2,
		SustainStart: 1,
		SustainEnd:   2,
	}
}

func TestEnvelopeSustain(t *testing.T) {
	env := testEnvelope(itfile.EnvelopeSustain)

	var c envelopeCursor
	have := stepEnvelope(&c, env, true, 14)
	want := []int{64, 56, 48, 40, 32, 28, 24, 20, 16, 32, 28, 24, 20, 16}
	if fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("sustained envelope:\nhave: %v\nwant: %v", have, want)
	}

	// After the release the envelope runs to its end.
	have = stepEnvelope(&c, env, false, 8)
	want = []int{32, 28, 24, 20, 16, 12, 8, 4}
	if fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("released envelope:\nhave: %v\nwant: %v", have, want)
	}
	have = stepEnvelope(&c, env, false, 3)
	if fmt.Sprint(have) != "[0 0 0]" || !c.finished {
		t.Fatalf("envelope end: values=%v finished=%v", have, c.finished)
	}

	c.setTick(2)
	if c.finished || c.step(env, false) != 48 {
		t.Fatalf("setTick doesn't restart the envelope")
	}
}

func TestEnvelopeLoop(t *testing.T) {
	env := testEnvelope(itfile.EnvelopeLoop)

	for _, keyOn := range []bool{true, false} {
		var c envelopeCursor
		have := stepEnvelope(&c, env, keyOn, 12)
		want := []int{64, 56, 48, 40, 32, 28, 24, 20, 16, 32, 28, 24}
		if fmt.Sprint(have) != fmt.Sprint(want) {
			t.Fatalf("keyOn=%v:\nhave: %v\nwant: %v", keyOn, have, want)
		}
		if c.finished {
			t.Fatalf("keyOn=%v: a looped envelope is finished", keyOn)
		}
	}
}

func TestEnvelopeSustainAndLoop(t *testing.T) {
	env := testEnvelope(itfile.EnvelopeSustain | itfile.EnvelopeLoop)
	env.SustainStart = 2
	env.SustainEnd = 2

	var c envelopeCursor
	have := stepEnvelope(&c, env, true, 12)
	want := []int{64, 56, 48, 40, 32, 28, 24, 20, 16, 16, 16, 16}
	if fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("key on:\nhave: %v\nwant: %v", have, want)
	}
	have = stepEnvelope(&c, env, false, 3)
	want = []int{16, 32, 28}
	if fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("key off:\nhave: %v\nwant: %v", have, want)
	}
}

func TestEnvelopeCarry(t *testing.T) {
	for _, carry := range []bool{false, true} {
		inst := testInstrument()
		inst.VolumeEnvelope = *testEnvelope(itfile.EnvelopeLoop)
		if carry {
			inst.VolumeEnvelope.Flags |= itfile.EnvelopeCarry
		}
		pool, smp := newTestPool(t, 4, 1)

		pool.NoteOn(testNoteOn(0, 60, inst, smp))
		for i := 0; i < 3; i++ {
			pool.Update(0, fullOutput)
			pool.EndTick(128)
		}
		h := pool.NoteOn(testNoteOn(0, 62, inst, smp))
		v := pool.resolve(h)
		if v == nil {
			t.Fatalf("carry=%v: no voice", carry)
		}
		want := 0
		if carry {
			want = 3
		}
		if v.volumeEnvelope.tick != want {
			t.Errorf("carry=%v: envelope tick is %d, want %d", carry, v.volumeEnvelope.tick, want)
		}
	}
}
