package itplay

import (
	"errors"
	"io"
	"math"
	"testing"
)

func newTestStream(t *testing.T, song testSong, config LoadModuleConfig) *Stream {
	t.Helper()
	m, bank := song.build(t)
	config.Samples = bank
	s := NewStream()
	if err := s.LoadModule(m, config); err != nil {
		t.Fatal(err)
	}
	return s
}

// readTicks reads exactly n ticks of the default tempo.
func readTicks(t *testing.T, s *Stream, n int) []byte {
	t.Helper()
	buf := make([]byte, n*882*4)
	if _, err := io.ReadFull(s, buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func isSilent(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

var twoRowSong = testSong{
	channels: 2,
	patterns: [][]string{{
		"C-5 01 .. Z03",
		"... .. .. ...",
	}},
}

func TestStreamRead(t *testing.T) {
	for _, chunkSize := range []int{4, 999, 3528, 100000} {
		s := newTestStream(t, twoRowSong, LoadModuleConfig{NoLoop: true})
		total := readAll(t, s, chunkSize)
		// 2 rows, 6 ticks per row, 882 frames per tick.
		if total != 42336 {
			t.Errorf("chunk=%d: have %d bytes, want 42336", chunkSize, total)
		}
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil || pos != int64(total) {
			t.Errorf("chunk=%d: Seek() = %d, %v", chunkSize, pos, err)
		}
		if n, err := s.Read(make([]byte, 16)); n != 0 || !errors.Is(err, io.EOF) {
			t.Errorf("chunk=%d: read after the end: %d, %v", chunkSize, n, err)
		}
	}
}

func TestStreamOutput(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{NoLoop: true})
	if isSilent(readTicks(t, s, 1)) {
		t.Fatalf("the note is not audible")
	}

	s.Rewind()
	if pos, _ := s.Seek(0, io.SeekCurrent); pos != 0 {
		t.Fatalf("rewind didn't reset the position: %d", pos)
	}
	s.SetVolume(0)
	if !isSilent(readTicks(t, s, 2)) {
		t.Fatalf("zero volume stream is audible")
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	s.SetVolume(1)
	if _, err := s.Seek(10, io.SeekStart); err == nil {
		t.Fatalf("unsupported Seek call succeeded")
	}
	if isSilent(readTicks(t, s, 1)) {
		t.Fatalf("the note is not audible after the seek")
	}
}

func TestStreamMute(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{})
	if err := s.SetChannelMute(0, true); err != nil {
		t.Fatal(err)
	}
	if !isSilent(readTicks(t, s, 3)) {
		t.Fatalf("muted channel is audible")
	}
	info, err := s.GetChannelInfo(0)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Muted {
		t.Fatalf("channel info is not muted")
	}

	// The mute survives the rewind.
	s.Rewind()
	if !isSilent(readTicks(t, s, 1)) {
		t.Fatalf("muted channel is audible after the rewind")
	}

	if err := s.SetChannelMute(0, false); err != nil {
		t.Fatal(err)
	}
	s.Rewind()
	if isSilent(readTicks(t, s, 1)) {
		t.Fatalf("unmuted channel is silent")
	}
}

func TestStreamErrors(t *testing.T) {
	s := NewStream()
	if _, err := s.Read(make([]byte, 4)); ErrorKind(err) != KindProgrammerError {
		t.Fatalf("read without a module: unexpected error %v", err)
	}
	if err := s.SetPosition(0, 0); ErrorKind(err) != KindProgrammerError {
		t.Fatalf("SetPosition without a module: unexpected error %v", err)
	}
	if err := s.SetChannelMute(0, true); ErrorKind(err) != KindProgrammerError {
		t.Fatalf("SetChannelMute without a module: unexpected error %v", err)
	}
	if _, err := s.Predict([]SyncTarget{LoopWrapTarget()}, 10); ErrorKind(err) != KindProgrammerError {
		t.Fatalf("Predict without a module: unexpected error %v", err)
	}
	if info := s.GetInfo(); info != (StreamInfo{}) {
		t.Fatalf("GetInfo without a module: %+v", info)
	}
	s.Rewind()

	s = newTestStream(t, twoRowSong, LoadModuleConfig{})
	for _, ch := range []int{-1, 2} {
		if _, err := s.GetChannelInfo(ch); ErrorKind(err) != KindProgrammerError {
			t.Errorf("GetChannelInfo(%d): unexpected error %v", ch, err)
		}
		if err := s.SetChannelMute(ch, true); ErrorKind(err) != KindProgrammerError {
			t.Errorf("SetChannelMute(%d): unexpected error %v", ch, err)
		}
	}
	if err := s.SetPosition(1, 0); ErrorKind(err) != KindProgrammerError {
		t.Errorf("SetPosition(1, 0): unexpected error %v", err)
	}
	if err := s.SetPosition(0, 2); ErrorKind(err) != KindProgrammerError {
		t.Errorf("SetPosition(0, 2): unexpected error %v", err)
	}

	m, _ := twoRowSong.build(t)
	err := NewStream().LoadModule(m, LoadModuleConfig{SampleRate: 10})
	if ErrorKind(err) != KindInvalidModule {
		t.Errorf("bad sample rate: unexpected error %v", err)
	}
	err = NewStream().LoadModule(m, LoadModuleConfig{Voices: -1})
	if ErrorKind(err) != KindProgrammerError {
		t.Errorf("negative voices: unexpected error %v", err)
	}
}

func TestStreamClose(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{})
	readTicks(t, s, 1)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Read(make([]byte, 100)); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("read after close: %d, %v", n, err)
	}

	// A new module makes the stream usable again.
	m, bank := twoRowSong.build(t)
	if err := s.LoadModule(m, LoadModuleConfig{Samples: bank}); err != nil {
		t.Fatal(err)
	}
	readTicks(t, s, 1)
}

func TestStreamInfo(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{Voices: 16})

	info := s.GetInfo()
	if info.BytesPerTick != 3528 || info.NumChannels != 2 || info.NumVoices != 16 || info.MemoryUsage == 0 {
		t.Fatalf("unexpected info: %+v", info)
	}

	readTicks(t, s, 1)
	order, row, tick := s.GetCursor()
	if order != 0 || row != 0 || tick != 0 {
		t.Fatalf("cursor: %d:%d:%d", order, row, tick)
	}
	ch, err := s.GetChannelInfo(0)
	if err != nil {
		t.Fatal(err)
	}
	if ch.NoteName != "C-5" || ch.Instrument != 1 || ch.Sample != 1 || ch.State != NoteSounding ||
		!ch.Triggered || ch.Effect != "Z03" || ch.Volume != 64 || ch.Pan != 32 {
		t.Fatalf("unexpected channel info: %+v", ch)
	}
	global := s.GetGlobalInfo()
	if global.Speed != 6 || global.Tempo != 125 || global.GlobalVolume != 128 || global.ActiveVoices != 1 {
		t.Fatalf("unexpected global info: %+v", global)
	}

	readTicks(t, s, 6)
	_, row, tick = s.GetCursor()
	if row != 1 || tick != 0 {
		t.Fatalf("cursor after 7 ticks: row=%d tick=%d", row, tick)
	}
	if ch, _ := s.GetChannelInfo(0); ch.Triggered || ch.Effect != "..." {
		t.Fatalf("the previous row is still reported: %+v", ch)
	}
}

func TestStreamEvents(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{})
	var events []StreamEvent
	s.SetEventHandler(func(e StreamEvent) {
		events = append(events, e)
	})

	readTicks(t, s, 13)
	s.Rewind()

	kinds := make([]StreamEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	wantKinds := []StreamEventKind{
		EventMarker, EventNote,
		EventLoop, EventMarker, EventNote,
		EventSync,
	}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("events:\nhave: %v\nwant: %v", kinds, wantKinds)
	}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] {
			t.Fatalf("events:\nhave: %v\nwant: %v", kinds, wantKinds)
		}
	}

	if v := events[0].MarkerEventData(); v != 3 || events[0].Time != 0 {
		t.Errorf("marker event: value=%d time=%f", v, events[0].Time)
	}
	note, inst, vol := events[1].NoteEventData()
	if note != 60 || inst != 1 || vol != 1 || events[1].Channel != 0 {
		t.Errorf("note event: note=%d inst=%d vol=%f channel=%d", note, inst, vol, events[1].Channel)
	}
	if loopTime := events[2].Time; math.Abs(loopTime-0.24) > 1e-9 {
		t.Errorf("loop event time: have %f, want 0.24", loopTime)
	}
	if sync := events[5]; math.Abs(sync.Time-13*882.0/44100) > 1e-9 {
		t.Errorf("sync event time: have %f", sync.Time)
	}
}

func TestStreamNoteEventData(t *testing.T) {
	e := StreamEvent{Kind: EventNote, value: packNoteEvent(119, 0, 0.5)}
	note, inst, vol := e.NoteEventData()
	if note != 119 || inst != -1 || vol != 0.5 {
		t.Fatalf("NoteEventData() = %d, %d, %f", note, inst, vol)
	}
	if EventNote.String() != "note" || StreamEventKind(100).String() != "unknown" {
		t.Fatalf("unexpected event kind names")
	}
}

func TestStreamControls(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{})

	if err := s.SetPosition(0, 1); err != nil {
		t.Fatal(err)
	}
	readTicks(t, s, 1)
	if _, row, tick := s.GetCursor(); row != 1 || tick != 0 {
		t.Fatalf("cursor after SetPosition: row=%d tick=%d", row, tick)
	}

	// The song wraps by default.
	readTicks(t, s, 6)
	if global := s.GetGlobalInfo(); !global.Looped {
		t.Fatalf("the song didn't loop: %+v", global)
	}

	s.SetLoopEnabled(false)
	total := readAll(t, s, 1000)
	// The rest of the row 0 and the whole row 1.
	if want := (5 + 6) * 3528; total != want {
		t.Fatalf("bytes until the end: have %d, want %d", total, want)
	}
	if global := s.GetGlobalInfo(); !global.Ended {
		t.Fatalf("the stream is not ended: %+v", global)
	}

	// Rewind makes the ended stream playable.
	s.Rewind()
	readTicks(t, s, 1)
}

func TestStreamPredict(t *testing.T) {
	s := newTestStream(t, twoRowSong, LoadModuleConfig{})
	readTicks(t, s, 7)

	timestamps, err := s.Predict([]SyncTarget{LoopWrapTarget(), SyncMarkerTarget(3)}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	// Predicted from the row 1 start.
	if want := (Timestamp{Samples: 6 * 882, Found: true}); timestamps[0] != want {
		t.Errorf("loop wrap:\nhave: %+v\nwant: %+v", timestamps[0], want)
	}
	if want := (Timestamp{Samples: 6 * 882, Found: true}); timestamps[1] != want {
		t.Errorf("marker:\nhave: %+v\nwant: %+v", timestamps[1], want)
	}

	// The prediction has no effect on the playback.
	if _, row, tick := s.GetCursor(); row != 1 || tick != 0 {
		t.Fatalf("the cursor moved: row=%d tick=%d", row, tick)
	}
}

func TestStreamDiagnostics(t *testing.T) {
	song := testSong{
		patterns: [][]string{{
			"C-5 01 .. ...",
			"C-5 05 .. ...",
		}},
	}
	s := newTestStream(t, song, LoadModuleConfig{NoLoop: true})
	readAll(t, s, 4096)
	diag := s.Diagnostics()
	if diag.CorruptCells != 1 || diag.IgnoredNotes != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diag)
	}
}
