package itplay

import (
	"github.com/quasilyte/itplay/itfile"
)

// VoiceState is everything a Renderer needs to know about a physical voice.
//
// The engine updates the volume, step and filter fields once per tick;
// the renderer owns the position and the ramping state.
type VoiceState struct {
	Channel ChannelID
	Sample  *itfile.Sample

	// Position is a 32.32 fixed-point frame index.
	Position int64

	// Step is a 32.32 fixed-point position increment per output frame.
	Step int64

	// VolumeLeft and VolumeRight are the target gains for this tick.
	VolumeLeft  float64
	VolumeRight float64

	// CurrentLeft and CurrentRight are the gains that are being ramped
	// towards the target values.
	CurrentLeft  float64
	CurrentRight float64

	Length    int
	LoopStart int
	LoopEnd   int
	Loop      itfile.SampleLoopType

	// Reverse is set while a ping-pong loop plays backwards.
	Reverse bool

	// Ended is set by the renderer when a non-looped sample is over.
	Ended bool

	// FilterCutoff is in [0, 128]; -1 means "no filter".
	FilterCutoff int

	filterLeft  float64
	filterRight float64
}

// Renderer converts a voice into the PCM frames.
//
// Render adds the voice output to dst that holds interleaved stereo
// frames in [-1, 1] range.
type Renderer interface {
	Render(dst []float32, v *VoiceState, pcm []int16)
}

// LinearRenderer is a default renderer.
// It does a linear interpolation between the sample frames.
type LinearRenderer struct {
	// RampFrames is a number of frames it takes to reach
	// a new target volume. A zero value means 64.
	RampFrames int
}

func (r *LinearRenderer) Render(dst []float32, v *VoiceState, pcm []int16) {
	if v.Ended || v.Length == 0 {
		return
	}

	rampFrames := r.RampFrames
	if rampFrames <= 0 {
		rampFrames = 64
	}
	rampStep := 1.0 / float64(rampFrames)

	filterCoeff := 1.0
	if v.FilterCutoff >= 0 {
		filterCoeff = 0.02 + 0.98*float64(v.FilterCutoff)/128
	}

	for i := 0; i+1 < len(dst); i += 2 {
		index := int(v.Position >> 32)
		frac := float64(uint32(v.Position)) * (1.0 / (1 << 32))

		a := float64(pcm[index])
		b := a
		if next := v.nextIndex(index); next != -1 {
			b = float64(pcm[next])
		}
		sample := (a + (b-a)*frac) * (1.0 / 32768)

		v.CurrentLeft = slideTowards(v.CurrentLeft, v.VolumeLeft, rampStep)
		v.CurrentRight = slideTowards(v.CurrentRight, v.VolumeRight, rampStep)

		left := sample * v.CurrentLeft
		right := sample * v.CurrentRight
		if filterCoeff < 1 {
			v.filterLeft += (left - v.filterLeft) * filterCoeff
			v.filterRight += (right - v.filterRight) * filterCoeff
			left = v.filterLeft
			right = v.filterRight
		}
		dst[i] += float32(left)
		dst[i+1] += float32(right)

		if !v.advance() {
			return
		}
	}
}

// nextIndex returns the frame that follows index for the interpolation.
func (v *VoiceState) nextIndex(index int) int {
	if v.Reverse {
		if index > v.LoopStart {
			return index - 1
		}
		return -1
	}
	next := index + 1
	switch {
	case v.Loop == itfile.LoopForward && next >= v.LoopEnd:
		return v.LoopStart
	case next >= v.Length:
		return -1
	}
	return next
}

// advance moves the position one output frame forward.
// It returns false when the sample is over.
func (v *VoiceState) advance() bool {
	if v.Reverse {
		v.Position -= v.Step
	} else {
		v.Position += v.Step
	}

	start := int64(v.LoopStart) << 32
	end := int64(v.LoopEnd) << 32

	switch v.Loop {
	case itfile.LoopForward:
		if v.Position >= end {
			v.Position = start + (v.Position-end)%(end-start)
		}
	case itfile.LoopPingPong:
		if !v.Reverse && v.Position >= end {
			v.Position = clamp(2*end-v.Position-1, start, end-1)
			v.Reverse = true
		} else if v.Reverse && v.Position < start {
			v.Position = clamp(2*start-v.Position, start, end-1)
			v.Reverse = false
		}
	default:
		if v.Position >= int64(v.Length)<<32 {
			v.Ended = true
			return false
		}
	}
	return true
}
