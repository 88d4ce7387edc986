package midiout

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/quasilyte/itplay"
	"github.com/quasilyte/itplay/itfile"
)

// describe formats the channel messages in a compact way.
func describe(msg midi.Message) string {
	var ch, key, vel, cc, value, program uint8
	var bend int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return fmt.Sprintf("on %d %d %d", ch, key, vel)
	case msg.GetNoteEnd(&ch, &key):
		return fmt.Sprintf("off %d %d", ch, key)
	case msg.GetProgramChange(&ch, &program):
		return fmt.Sprintf("prog %d %d", ch, program)
	case msg.GetControlChange(&ch, &cc, &value):
		return fmt.Sprintf("cc %d %d %d", ch, cc, value)
	case msg.GetPitchBend(&ch, &bend, &abs):
		return fmt.Sprintf("bend %d %d", ch, bend)
	}
	return msg.String()
}

type messageLog struct {
	messages []string
}

func (l *messageLog) send(msg midi.Message) error {
	l.messages = append(l.messages, describe(msg))
	return nil
}

func (l *messageLog) flush() string {
	s := strings.Join(l.messages, "; ")
	l.messages = l.messages[:0]
	return s
}

func testNote(ch itplay.ChannelID, note uint8, instrument int) itplay.NoteOn {
	inst := &itfile.Instrument{}
	inst.MapAllNotes(1)
	return itplay.NoteOn{
		Channel:    ch,
		Note:       note,
		Instrument: instrument,
		Sample:     1,
		Inst:       inst,
		Smp:        &itfile.Sample{DefaultVolume: 64},
	}
}

func TestSink(t *testing.T) {
	var log messageLog
	s := NewSink(2, log.send)

	out := itplay.ChannelOutput{Pitch: 60 * 64, Volume: 64, ChannelVolume: 64, Pan: 32}

	steps := []struct {
		name string
		run  func()
		want string
	}{
		{
			name: "first note",
			run:  func() { s.NoteOn(testNote(1, 60, 3)) },
			want: "prog 1 2; on 1 60 127",
		},
		{
			name: "first update",
			run:  func() { s.Update(1, out) },
			want: "cc 1 7 127; cc 1 10 64",
		},
		{
			name: "same output",
			run:  func() { s.Update(1, out) },
			want: "",
		},
		{
			name: "slide up",
			run: func() {
				out.Pitch += 32
				s.Update(1, out)
			},
			want: "bend 1 2048",
		},
		{
			name: "volume change",
			run: func() {
				out.Volume = 32
				s.Update(1, out)
			},
			want: "cc 1 7 63",
		},
		{
			name: "next note",
			run:  func() { s.NoteOn(testNote(1, 62, 3)) },
			want: "off 1 60; on 1 62 127",
		},
		{
			name: "bend reset",
			run: func() {
				out.Pitch = 62 * 64
				s.Update(1, out)
			},
			want: "bend 1 0",
		},
		{
			name: "retrigger",
			run:  func() { s.Retrigger(1, 0) },
			want: "off 1 62; on 1 62 100",
		},
		{
			name: "release",
			run: func() {
				s.Release(1, itplay.ReleaseFade)
				s.Release(1, itplay.ReleaseOff)
				s.Retrigger(1, 0)
			},
			want: "off 1 62",
		},
		{
			name: "mute",
			run: func() {
				out.Muted = true
				s.Update(1, out)
			},
			want: "cc 1 7 0",
		},
		{
			name: "other channel",
			run:  func() { s.NoteOn(testNote(0, 48, 1)) },
			want: "prog 0 0; on 0 48 127",
		},
		{
			name: "all notes off",
			run:  s.AllNotesOff,
			want: "off 0 48",
		},
		{
			name: "no-op commands",
			run: func() {
				s.PastNotes(0, itplay.ReleaseCut)
				s.SetNewNoteAction(0, itfile.NNACut)
				s.SetEnvelopePosition(0, 10)
				s.EndTick(128)
			},
			want: "",
		},
	}
	for _, step := range steps {
		step.run()
		if have := log.flush(); have != step.want {
			t.Fatalf("%s:\nhave: %q\nwant: %q", step.name, have, step.want)
		}
	}

	if h := s.NoteOn(testNote(5, 60, 1)); h.IsValid() {
		t.Fatalf("out of range channel note returned a voice")
	}
	if s.Update(5, out) {
		t.Fatalf("out of range channel update succeeded")
	}
	if have := log.flush(); have != "" {
		t.Fatalf("out of range channel produced messages: %q", have)
	}
}

func TestSinkKeymap(t *testing.T) {
	var log messageLog
	s := NewSink(1, log.send)

	n := testNote(0, 60, 1)
	n.Inst.Keymap[60].Note = 72
	n.Smp.DefaultVolume = 20
	s.NoteOn(n)
	if have, want := log.flush(), "prog 0 0; on 0 72 40"; have != want {
		t.Fatalf("have: %q\nwant: %q", have, want)
	}

	// The bend is relative to the transposed key.
	s.Update(0, itplay.ChannelOutput{Pitch: 72*64 - 64, Volume: 64, ChannelVolume: 64})
	if have, want := log.flush(), "cc 0 7 127; cc 0 10 0; bend 0 -4096"; have != want {
		t.Fatalf("have: %q\nwant: %q", have, want)
	}
}

func TestSinkChannelMapping(t *testing.T) {
	var log messageLog
	s := NewSink(20, log.send)
	s.NoteOn(testNote(17, 60, 1))
	if have, want := log.flush(), "prog 1 0; on 1 60 127"; have != want {
		t.Fatalf("have: %q\nwant: %q", have, want)
	}
}

func TestSinkErrors(t *testing.T) {
	errFirst := errors.New("first")
	calls := 0
	s := NewSink(1, func(msg midi.Message) error {
		calls++
		if calls == 1 {
			return errFirst
		}
		return errors.New("next")
	})
	s.NoteOn(testNote(0, 60, 1))
	s.Release(0, itplay.ReleaseOff)

	if s.NumErrors() != 3 {
		t.Fatalf("NumErrors() = %d, want 3", s.NumErrors())
	}
	if !errors.Is(s.Err(), errFirst) {
		t.Fatalf("Err() = %v, want the first error", s.Err())
	}
}

func TestPitchBend(t *testing.T) {
	tests := []struct {
		delta int
		want  int16
	}{
		{0, 0},
		{64, 4096},
		{-64, -4096},
		{127, 8128},
		{128, 8191},
		{-128, -8192},
		{10000, 8191},
		{-10000, -8192},
	}
	for _, test := range tests {
		if have := pitchBend(test.delta); have != test.want {
			t.Errorf("pitchBend(%d) = %d, want %d", test.delta, have, test.want)
		}
	}
}

func TestSinkSharedKeys(t *testing.T) {
	var log messageLog
	s := NewSink(20, log.send)

	steps := []struct {
		name string
		run  func()
		want string
	}{
		{
			name: "same key on both channels",
			run: func() {
				s.NoteOn(testNote(1, 60, 1))
				s.NoteOn(testNote(17, 60, 1))
			},
			want: "prog 1 0; on 1 60 127; prog 1 0; on 1 60 127",
		},
		{
			name: "the key is still held",
			run:  func() { s.Release(1, itplay.ReleaseOff) },
			want: "",
		},
		{
			name: "the last holder",
			run:  func() { s.Release(17, itplay.ReleaseOff) },
			want: "off 1 60",
		},
		{
			name: "different keys",
			run: func() {
				s.NoteOn(testNote(1, 60, 1))
				s.NoteOn(testNote(17, 62, 1))
				s.Release(1, itplay.ReleaseCut)
			},
			want: "on 1 60 127; on 1 62 127; off 1 60",
		},
		{
			name: "all notes off",
			run:  s.AllNotesOff,
			want: "off 1 62",
		},
	}
	for _, step := range steps {
		step.run()
		if have := log.flush(); have != step.want {
			t.Fatalf("%s:\nhave: %q\nwant: %q", step.name, have, step.want)
		}
	}
}
