package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"

	"github.com/quasilyte/itplay"
)

func TestConfigSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	if _, err := loadConfig(path); err == nil {
		t.Fatalf("loading a missing explicit config succeeded")
	}

	cfg := defaultConfig()
	cfg.SampleRate = 48000
	cfg.Backend = "oto"
	cfg.NoLoop = true
	if err := cfg.save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *cfg {
		t.Fatalf("loaded config:\nhave: %+v\nwant: %+v", loaded, cfg)
	}

	// The missing fields keep their defaults.
	if err := os.WriteFile(path, []byte(`{"voices": 8}`), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err = loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Voices != 8 || loaded.SampleRate != 44100 || loaded.Backend != "ebiten" {
		t.Fatalf("unexpected partial config: %+v", loaded)
	}

	if err := os.WriteFile(path, []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("a broken config is accepted")
	}
}

func TestDemoSong(t *testing.T) {
	s, err := loadSong("")
	if err != nil {
		t.Fatal(err)
	}
	if s.module.NumChannels == 0 || len(s.module.Instruments) == 0 || len(s.samples) != len(s.module.Samples) {
		t.Fatalf("unexpected demo module: channels=%d instruments=%d samples=%d",
			s.module.NumChannels, len(s.module.Instruments), len(s.samples))
	}

	stream := itplay.NewStream()
	err = stream.LoadModule(s.module, itplay.LoadModuleConfig{
		Samples: s.samples,
		NoLoop:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diag := stream.Diagnostics(); diag != (itplay.Diagnostics{}) {
		t.Fatalf("the demo song has data faults: %+v", diag)
	}
}

func TestSongFileErrors(t *testing.T) {
	tests := []struct {
		name string
		f    songFile
		want string
	}{
		{
			name: "order",
			f:    songFile{Orders: []int{300}},
			want: "invalid order entry",
		},
		{
			name: "row",
			f:    songFile{Patterns: [][]string{{"H-5 .. .. ..."}}},
			want: "pattern 0 row 0",
		},
		{
			name: "wave",
			f:    songFile{Samples: []songSample{{Name: "s", Wave: "pulse"}}},
			want: "unknown waveform",
		},
		{
			name: "nna",
			f:    songFile{Instruments: []songInstrument{{Name: "i", NNA: "hold"}}},
			want: "unknown nna",
		},
		{
			name: "dct",
			f:    songFile{Instruments: []songInstrument{{Name: "i", DCT: "pitch"}}},
			want: "unknown dct",
		},
		{
			name: "dca",
			f:    songFile{Instruments: []songInstrument{{Name: "i", DCA: "stop"}}},
			want: "unknown dca",
		},
	}
	for _, test := range tests {
		_, err := test.f.build()
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: unexpected error %v", test.name, err)
		}
	}

	_, err := loadSong(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("loading a missing song succeeded")
	}
	if !errors.Is(err, fs.ErrNotExist) || !strings.Contains(err.Error(), "read song file") {
		t.Errorf("the wrapped error lost its cause or context: %v", err)
	}
}

func TestAudioBackendErrors(t *testing.T) {
	_, err := newAudioPlayer("alsa", 44100, bytes.NewReader(nil))
	if err == nil || !strings.Contains(err.Error(), `unknown audio backend "alsa"`) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSongEnvelope(t *testing.T) {
	e := &songEnvelope{
		Nodes:   [][2]int{{0, 64}, {10, 32}, {20, 0}},
		Loop:    []int{0, 1},
		Sustain: []int{1, 1},
		Carry:   true,
	}
	env := e.build()
	if !env.Enabled() || !env.Flags.LoopEnabled() || !env.Flags.SustainEnabled() || !env.Flags.CarryEnabled() {
		t.Fatalf("unexpected flags: %08b", env.Flags)
	}
	if len(env.Nodes) != 3 || env.Nodes[1].Tick != 10 || env.Nodes[1].Value != 32 {
		t.Fatalf("unexpected nodes: %v", env.Nodes)
	}

	var missing *songEnvelope
	if env := missing.build(); env.Enabled() {
		t.Fatalf("a missing envelope is enabled")
	}
}

func TestWriteWAV(t *testing.T) {
	const numFrames = 10000
	var pcm bytes.Buffer
	for i := 0; i < numFrames; i++ {
		binary.Write(&pcm, binary.LittleEndian, int16(i))
		binary.Write(&pcm, binary.LittleEndian, int16(-i))
	}

	tests := []struct {
		seconds float64
		want    int
	}{
		{0, numFrames},
		{0.1, 4410},
		{10, numFrames},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "out.wav")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		frames, err := writeWAV(f, bytes.NewReader(pcm.Bytes()), 44100, test.seconds)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if frames != test.want {
			t.Errorf("seconds=%v: have %d frames, want %d", test.seconds, frames, test.want)
		}

		f, err = os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			f.Close()
			t.Fatalf("seconds=%v: invalid WAV file", test.seconds)
		}
		buf, err := dec.FullPCMBuffer()
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 44100 {
			t.Fatalf("unexpected format: %+v", buf.Format)
		}
		if len(buf.Data) != 2*test.want {
			t.Fatalf("seconds=%v: decoded %d samples, want %d", test.seconds, len(buf.Data), 2*test.want)
		}
		if buf.Data[2*1234] != 1234 || buf.Data[2*1234+1] != -1234 {
			t.Fatalf("unexpected frame data: %d %d", buf.Data[2*1234], buf.Data[2*1234+1])
		}
	}
}
