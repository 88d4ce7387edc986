package itplay

import (
	"math"
)

type numeric interface {
	uint8 | int | int64 | float32 | float64
}

func clampMin[T numeric](v, min T) T {
	if v < min {
		return min
	}
	return v
}

func clampMax[T numeric](v, max T) T {
	if v > max {
		return max
	}
	return v
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func slideTowards[T numeric](v, goal, step T) T {
	if v < goal {
		return clampMax(v+step, goal)
	}
	return clampMin(v-step, goal)
}

const (
	// pitchUnitsPerSemitone is a linear pitch resolution.
	pitchUnitsPerSemitone = 64

	// pitchUnitsPerOctave is used in the frequency calculations.
	pitchUnitsPerOctave = 12 * pitchUnitsPerSemitone

	// pitchC5 is a pitch of the note that plays the sample at its C5Speed rate.
	pitchC5 = 60 * pitchUnitsPerSemitone

	maxPitch = 120*pitchUnitsPerSemitone - 1
)

func notePitch(note uint8) int {
	return int(note) * pitchUnitsPerSemitone
}

// linearFrequency converts a linear pitch into a playback frequency.
func linearFrequency(c5speed, pitch int) float64 {
	return float64(c5speed) * math.Pow(2, float64(pitch-pitchC5)/pitchUnitsPerOctave)
}

// pitchStep returns a 32.32 fixed-point sample position increment per output frame.
func pitchStep(freq float64, sampleRate int) int64 {
	return int64(freq / float64(sampleRate) * (1 << 32))
}

// slideParam applies the D/N/W-style slide parameter to v.
//
// x0 slides up and 0y slides down on every non-first tick;
// xF and Fy are fine slides applied on the first tick only.
func slideParam(v int, param uint8, firstTick bool, max int) int {
	x := int(param >> 4)
	y := int(param & 0xf)
	switch {
	case y == 0xf && x != 0:
		if firstTick {
			v += x
		}
	case x == 0xf && y != 0:
		if firstTick {
			v -= y
		}
	case y == 0:
		if !firstTick {
			v += x
		}
	case x == 0:
		if !firstTick {
			v -= y
		}
	}
	return clamp(v, 0, max)
}

// panSlideParam applies the Pxy slide to the 0..64 pan value.
// It's a mirrored slideParam: x0 slides left and 0y slides right.
func panSlideParam(pan int, param uint8, firstTick bool) int {
	return 64 - slideParam(64-pan, param, firstTick, 64)
}

// slideDirection reports the slide direction for the display purposes.
func slideDirection(param uint8) int {
	x := param >> 4
	y := param & 0xf
	switch {
	case param == 0:
		return 0
	case y == 0xf && x != 0, y == 0:
		return 1
	default:
		return -1
	}
}
