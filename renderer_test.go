package itplay

import (
	"fmt"
	"testing"

	"github.com/quasilyte/itplay/itfile"
)

func renderFrames(r Renderer, v *VoiceState, pcm []int16, n int) []float32 {
	dst := make([]float32, n*2)
	r.Render(dst, v, pcm)
	return dst
}

func leftChannel(dst []float32) []float32 {
	result := make([]float32, len(dst)/2)
	for i := range result {
		result[i] = dst[i*2]
	}
	return result
}

func TestLinearRendererForwardLoop(t *testing.T) {
	pcm := []int16{0, 16384, 0, -16384}
	v := &VoiceState{
		Step:         1 << 32,
		VolumeLeft:   1,
		CurrentLeft:  1,
		Length:       len(pcm),
		LoopEnd:      len(pcm),
		Loop:         itfile.LoopForward,
		FilterCutoff: -1,
	}
	dst := renderFrames(&LinearRenderer{}, v, pcm, 8)
	want := []float32{0, 0.5, 0, -0.5, 0, 0.5, 0, -0.5}
	if have := leftChannel(dst); fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("left channel:\nhave: %v\nwant: %v", have, want)
	}
	for i := 1; i < len(dst); i += 2 {
		if dst[i] != 0 {
			t.Fatalf("the right channel is not silent: %v", dst)
		}
	}
	if v.Ended || v.Position != 0 {
		t.Fatalf("unexpected state after the loop: ended=%v pos=%d", v.Ended, v.Position>>32)
	}
}

func TestLinearRendererInterpolation(t *testing.T) {
	pcm := []int16{0, 16384, 16384, 16384}
	v := &VoiceState{
		Step:         1 << 31,
		VolumeLeft:   1,
		CurrentLeft:  1,
		Length:       len(pcm),
		FilterCutoff: -1,
	}
	dst := renderFrames(&LinearRenderer{}, v, pcm, 3)
	want := []float32{0, 0.25, 0.5}
	if have := leftChannel(dst); fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("left channel:\nhave: %v\nwant: %v", have, want)
	}
}

func TestLinearRendererNoLoop(t *testing.T) {
	pcm := []int16{16384, 16384, 16384, 16384}
	v := &VoiceState{
		Step:         1 << 32,
		VolumeLeft:   1,
		CurrentLeft:  1,
		Length:       len(pcm),
		FilterCutoff: -1,
	}
	dst := renderFrames(&LinearRenderer{}, v, pcm, 8)
	want := []float32{0.5, 0.5, 0.5, 0.5, 0, 0, 0, 0}
	if have := leftChannel(dst); fmt.Sprint(have) != fmt.Sprint(want) {
		t.Fatalf("left channel:\nhave: %v\nwant: %v", have, want)
	}
	if !v.Ended {
		t.Fatalf("the voice has not ended")
	}

	// An ended voice renders nothing.
	dst = renderFrames(&LinearRenderer{}, v, pcm, 4)
	if fmt.Sprint(dst) != fmt.Sprint(make([]float32, 8)) {
		t.Fatalf("ended voice output: %v", dst)
	}
}

func TestLinearRendererPingPong(t *testing.T) {
	pcm := make([]int16, 8)
	v := &VoiceState{
		Step:         1 << 32,
		Length:       len(pcm),
		LoopStart:    2,
		LoopEnd:      6,
		Loop:         itfile.LoopPingPong,
		FilterCutoff: -1,
	}
	var positions []int64
	var r LinearRenderer
	for i := 0; i < 14; i++ {
		renderFrames(&r, v, pcm, 1)
		positions = append(positions, v.Position>>32)
	}
	want := []int64{1, 2, 3, 4, 5, 5, 4, 3, 2, 2, 3, 4, 5, 5}
	if fmt.Sprint(positions) != fmt.Sprint(want) {
		t.Fatalf("positions:\nhave: %v\nwant: %v", positions, want)
	}
	if !v.Reverse || v.Ended {
		t.Fatalf("unexpected state: reverse=%v ended=%v", v.Reverse, v.Ended)
	}
}

func TestLinearRendererRamp(t *testing.T) {
	pcm := []int16{16384, 16384}
	v := &VoiceState{
		VolumeLeft:   1,
		VolumeRight:  0,
		CurrentRight: 1,
		Length:       len(pcm),
		Loop:         itfile.LoopForward,
		LoopEnd:      len(pcm),
		FilterCutoff: -1,
	}
	dst := renderFrames(&LinearRenderer{RampFrames: 4}, v, pcm, 6)
	wantLeft := []float32{0.125, 0.25, 0.375, 0.5, 0.5, 0.5}
	if have := leftChannel(dst); fmt.Sprint(have) != fmt.Sprint(wantLeft) {
		t.Fatalf("left channel:\nhave: %v\nwant: %v", have, wantLeft)
	}
	if v.CurrentLeft != 1 || v.CurrentRight != 0 {
		t.Fatalf("gains are not reached: %f %f", v.CurrentLeft, v.CurrentRight)
	}
}

func TestLinearRendererFilter(t *testing.T) {
	pcm := []int16{16384, 16384}
	newVoice := func(cutoff int) *VoiceState {
		return &VoiceState{
			VolumeLeft:   1,
			CurrentLeft:  1,
			Length:       len(pcm),
			Loop:         itfile.LoopForward,
			LoopEnd:      len(pcm),
			FilterCutoff: cutoff,
		}
	}

	open := leftChannel(renderFrames(&LinearRenderer{}, newVoice(128), pcm, 4))
	if open[0] != 0.5 {
		t.Fatalf("an open filter changes the signal: %v", open)
	}

	closed := leftChannel(renderFrames(&LinearRenderer{}, newVoice(0), pcm, 16))
	for i := 1; i < len(closed); i++ {
		if closed[i] <= closed[i-1] || closed[i] >= 0.5 {
			t.Fatalf("unexpected low-pass response: %v", closed)
		}
	}
	if closed[0] > 0.011 {
		t.Fatalf("the filter doesn't attenuate the attack: %v", closed[0])
	}
}

func TestLinearRendererMixes(t *testing.T) {
	pcm := []int16{16384, 16384}
	v := &VoiceState{
		VolumeLeft:   0.5,
		CurrentLeft:  0.5,
		VolumeRight:  0.5,
		CurrentRight: 0.5,
		Length:       len(pcm),
		Loop:         itfile.LoopForward,
		LoopEnd:      len(pcm),
		FilterCutoff: -1,
	}
	dst := []float32{0.25, -0.25}
	var r LinearRenderer
	r.Render(dst, v, pcm)
	if dst[0] != 0.5 || dst[1] != 0 {
		t.Fatalf("the voice is not added to the mix: %v", dst)
	}
}
