package itplay

import (
	"io"
	"testing"
)

func readSynth(t *testing.T, s *Synthesizer, ticks int) []byte {
	t.Helper()
	buf := make([]byte, ticks*3528)
	if _, err := io.ReadFull(s, buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestSynthesizer(t *testing.T) {
	m, bank := testSong{patterns: [][]string{{""}}}.build(t)

	synth := NewSynthesizer(SynthesizerConfig{NumChannels: 2})
	if err := synth.PlayNote(0, 60, 1); ErrorKind(err) != KindProgrammerError {
		t.Fatalf("PlayNote without instruments: unexpected error %v", err)
	}
	if err := synth.LoadInstruments(m, LoadModuleConfig{Samples: bank}); err != nil {
		t.Fatal(err)
	}

	if !isSilent(readSynth(t, synth, 4)) {
		t.Fatalf("idle synthesizer is audible")
	}

	if err := synth.PlayNote(0, 60, 1); err != nil {
		t.Fatal(err)
	}
	if isSilent(readSynth(t, synth, 1)) {
		t.Fatalf("the note is not audible")
	}
	if err := synth.PlayNote(1, 64, 1); err != nil {
		t.Fatal(err)
	}
	readSynth(t, synth, 1)
	if have := synth.ActiveVoices(); have != 2 {
		t.Fatalf("active voices: have %d, want 2", have)
	}

	// Without an envelope the released note fades out in 32 ticks.
	if err := synth.StopNote(0); err != nil {
		t.Fatal(err)
	}
	readSynth(t, synth, 40)
	if have := synth.ActiveVoices(); have != 1 {
		t.Fatalf("active voices after the note-off: have %d, want 1", have)
	}

	// The notes outlive the internal pattern.
	readSynth(t, synth, 64*6)
	if have := synth.ActiveVoices(); have != 1 {
		t.Fatalf("active voices after the pattern wrap: have %d, want 1", have)
	}

	synth.Rewind()
	readSynth(t, synth, 1)
	if have := synth.ActiveVoices(); have != 0 {
		t.Fatalf("active voices after the rewind: have %d, want 0", have)
	}

	if err := synth.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := synth.Read(make([]byte, 4)); err != io.EOF {
		t.Fatalf("read after close: %v", err)
	}
}

func TestSynthesizerErrors(t *testing.T) {
	m, bank := testSong{patterns: [][]string{{""}}}.build(t)
	synth := NewSynthesizer(SynthesizerConfig{NumChannels: 2})
	if err := synth.LoadInstruments(m, LoadModuleConfig{Samples: bank}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ch         int
		note       uint8
		instrument int
	}{
		{-1, 60, 1},
		{2, 60, 1},
		{0, 120, 1},
		{0, 60, 0},
		{0, 60, 2},
	}
	for _, test := range tests {
		err := synth.PlayNote(test.ch, test.note, test.instrument)
		if ErrorKind(err) != KindProgrammerError {
			t.Errorf("PlayNote(%d, %d, %d): unexpected error %v", test.ch, test.note, test.instrument, err)
		}
	}
	if err := synth.StopNote(2); ErrorKind(err) != KindProgrammerError {
		t.Errorf("StopNote(2): unexpected error %v", err)
	}
}
