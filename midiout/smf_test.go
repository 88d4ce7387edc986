package midiout

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/quasilyte/itplay/itfile"
)

func testModule(t *testing.T, rows ...string) *itfile.Module {
	t.Helper()
	var p itfile.Pattern
	for _, s := range rows {
		row, err := itfile.ParseRow(s)
		if err != nil {
			t.Fatal(err)
		}
		p.Rows = append(p.Rows, row)
	}
	inst := itfile.Instrument{Name: "lead", GlobalVolume: 128}
	inst.MapAllNotes(1)
	return &itfile.Module{
		Name:        "export test",
		NumChannels: 2,
		Orders:      []uint8{0},
		Patterns:    []itfile.Pattern{p},
		Instruments: []itfile.Instrument{inst},
		Samples: []itfile.Sample{{
			Length:        100,
			C5Speed:       8363,
			DefaultVolume: 64,
			GlobalVolume:  64,
		}},
	}
}

type noteTime struct {
	start bool
	key   uint8
	at    uint32
}

func TestExportSMF(t *testing.T) {
	m := testModule(t,
		"C-5 01 .. ... | E-5 01 .. ...",
		"=== .. .. ...",
		"G-5 01 .. ...",
		"... .. .. ...",
	)

	var buf bytes.Buffer
	if err := ExportSMF(&buf, m, ExportConfig{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("MThd")) {
		t.Fatalf("not a MIDI file: % x", buf.Bytes()[:8])
	}

	file, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if file.TimeFormat != smf.MetricTicks(ticksPerQuarter) {
		t.Fatalf("unexpected time format: %v", file.TimeFormat)
	}
	if len(file.Tracks) != 1 {
		t.Fatalf("have %d tracks, want 1", len(file.Tracks))
	}

	var notes []noteTime
	var at uint32
	for _, ev := range file.Tracks[0] {
		at += ev.Delta
		msg := midi.Message(ev.Message)
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			notes = append(notes, noteTime{start: true, key: key, at: at})
		case msg.GetNoteEnd(&ch, &key):
			notes = append(notes, noteTime{start: false, key: key, at: at})
		}
	}

	// A row is 6*882 frames; 1920 MIDI ticks per second.
	rowAt := func(n int) uint32 {
		return uint32(n * 6 * 882 * 1920 / 44100)
	}
	want := []noteTime{
		{true, 60, 0},
		{true, 64, 0},
		{false, 60, rowAt(1)},
		{true, 67, rowAt(2)},
		{false, 67, rowAt(4)},
		{false, 64, rowAt(4)},
	}
	if len(notes) != len(want) {
		t.Fatalf("notes:\nhave: %v\nwant: %v", notes, want)
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("note[%d]: have %+v, want %+v", i, notes[i], want[i])
		}
	}
}

func TestExportSMFMaxTicks(t *testing.T) {
	m := testModule(t, "C-5 01 .. ...", "D-5 01 .. ...", "E-5 01 .. ...")

	var buf bytes.Buffer
	if err := ExportSMF(&buf, m, ExportConfig{MaxTicks: 7}); err != nil {
		t.Fatal(err)
	}
	file, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	starts := 0
	for _, ev := range file.Tracks[0] {
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
			starts++
		}
	}
	if starts != 2 {
		t.Fatalf("have %d notes within 7 ticks, want 2", starts)
	}
}

func TestExportSMFInvalidModule(t *testing.T) {
	m := testModule(t, "C-5 01 .. ...")
	m.Orders = nil
	var buf bytes.Buffer
	if err := ExportSMF(&buf, m, ExportConfig{}); err == nil {
		t.Fatalf("expected an error")
	}
	if buf.Len() != 0 {
		t.Fatalf("a broken module produced %d bytes", buf.Len())
	}
}
