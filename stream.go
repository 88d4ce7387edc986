package itplay

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/quasilyte/itplay/itfile"
)

// Stream wraps the compiled IT module, making it possible to Read() its PCM bytes.
//
// The Read() method produces 16-bit little endian stereo PCM bytes; this is what ebiten/audio
// package expects. Use Stream as an io.Reader argument for audio.NewPlayer().
//
// Read, Rewind and LoadModule must be called from a single goroutine (usually the audio player one).
// The query methods (GetCursor, GetChannelInfo, GetGlobalInfo, Diagnostics, Predict)
// and the controls (SetChannelMute, SetPosition, SetLoopEnabled) can be used from any goroutine.
type Stream struct {
	mod       *module
	sim       *Simulation
	pool      *voicePool
	simConfig SimulationConfig

	renderer   Renderer
	sampleRate int

	settings streamSettings

	// mix is a float stereo buffer for a single tick.
	mix []float32

	// pending holds the rendered tick bytes that didn't fit into the last Read.
	pending    []byte
	pendingBuf []byte

	bytePos int64
	frame   int64

	rowTriggered []bool
	muted        []bool

	controlMu sync.Mutex
	controls  []streamControl

	snapshotMu sync.Mutex
	snapshot   streamSnapshot

	// renderMu is held while a tick is rendered.
	renderMu sync.Mutex
	closed   atomic.Bool

	logger *slog.Logger
}

type streamSettings struct {
	volumeScaling float64
	eventHandler  func(e StreamEvent)
}

type streamControlKind uint8

const (
	controlMute streamControlKind = iota
	controlPosition
	controlLoop
	controlNoteOn
	controlNoteOff
)

type streamControl struct {
	kind  streamControlKind
	ch    int
	order int
	row   int
	flag  bool

	note       uint8
	instrument int
}

// mixHeadroom is an amplification factor that leaves some space
// for several loud voices before the clipping.
const mixHeadroom = 0.5

// StreamInfo contains a compiled IT module stream information like bytes per tick, etc.
type StreamInfo struct {
	// BytesPerTick tells how much bytes the current tick requires.
	// It changes with the tempo.
	BytesPerTick uint

	// MemoryUsage approximates the compiled module size in bytes.
	MemoryUsage uint

	NumChannels int
	NumVoices   int
}

// LoadModuleConfig configures the IT module loading.
//
// These settings can't be changed after a module is loaded.
type LoadModuleConfig struct {
	// The sound device sample rate.
	// If you're using Ebitengine, it's the same value that
	// was used to create an audio context.
	//
	// A zero value will assume a sample rate of 44100.
	SampleRate int

	// Voices is a physical voice pool size.
	// A zero value means 64.
	Voices int

	// Speed (ticks per row) and Tempo override the module defaults.
	// Zero values will use the module defaults.
	Speed int
	Tempo int

	// TimerPrecision is a number of fractional bits used by the tick timer.
	// A zero value means 16.
	TimerPrecision uint

	// Seed initializes the random volume and panning variations.
	Seed int64

	// NoLoop makes the stream return EOF instead of wrapping the song.
	NoLoop bool

	// Samples provides the PCM data for the module samples.
	// A nil store makes every note silent.
	Samples itfile.SampleStore

	// Renderer converts voices into PCM.
	// A nil value means a LinearRenderer.
	Renderer Renderer

	// Logger receives the debug records about the absorbed data faults.
	Logger *slog.Logger
}

// NewStream allocates a stream that can load and play IT modules.
// Use LoadModule method to finish the stream initialization.
func NewStream() *Stream {
	return &Stream{
		settings: streamSettings{
			volumeScaling: 0.8,
		},
		logger: discardLogger(),
	}
}

// SetEventHandler installs an event listener to the stream.
//
// f is called on every stream event from inside the Read call.
func (s *Stream) SetEventHandler(f func(e StreamEvent)) {
	s.settings.eventHandler = f
}

// SetVolume adjusts the global volume scaling for the stream.
// The default value is 0.8; a value of 0 disables the sound.
// The value is clamped in [0, 1].
func (s *Stream) SetVolume(v float64) {
	s.settings.volumeScaling = clamp(v, 0, 1)
}

// SetLooping is an alias for SetLoopEnabled.
func (s *Stream) SetLooping(loop bool) {
	s.SetLoopEnabled(loop)
}

// SetLoopEnabled controls whether the song wraps around (the default)
// or makes Read return EOF at the song end.
//
// The change is applied at the next tick boundary.
func (s *Stream) SetLoopEnabled(enabled bool) {
	s.pushControl(streamControl{kind: controlLoop, flag: enabled})
}

// LoadModule assigns a new IT module to this stream.
//
// Loading a module involves its compilation, so it's not free.
// The module is copied during the compilation, it's safe to modify m afterwards.
func (s *Stream) LoadModule(m *itfile.Module, config LoadModuleConfig) error {
	if config.Voices == 0 {
		config.Voices = defaultNumVoices
	}
	if config.Voices < 0 {
		return programmerErrorf("negative voice pool size: %d", config.Voices)
	}
	if config.Samples == nil {
		config.Samples = itfile.SampleBank(nil)
	}
	if config.Renderer == nil {
		config.Renderer = &LinearRenderer{}
	}

	simConfig := SimulationConfig{
		SampleRate:     config.SampleRate,
		Speed:          config.Speed,
		Tempo:          config.Tempo,
		TimerPrecision: config.TimerPrecision,
		NoLoop:         config.NoLoop,
		Logger:         config.Logger,
	}
	if err := simConfig.applyDefaults(); err != nil {
		return err
	}
	mod, err := compileModule(m, simConfig.Logger)
	if err != nil {
		return err
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	pool := newVoicePool(voicePoolConfig{
		numVoices:   config.Voices,
		numChannels: mod.numChannels,
		sampleRate:  simConfig.SampleRate,
		seed:        config.Seed,
		samples:     config.Samples,
		logger:      simConfig.Logger,
	})
	sim := newSimulation(mod, pool, simConfig)
	pool.diag = &sim.diag

	s.mod = mod
	s.sim = sim
	s.pool = pool
	s.simConfig = simConfig
	s.renderer = config.Renderer
	s.sampleRate = simConfig.SampleRate
	s.logger = simConfig.Logger
	s.rowTriggered = make([]bool, mod.numChannels)
	s.muted = make([]bool, mod.numChannels)
	s.closed.Store(false)

	s.controlMu.Lock()
	s.controls = s.controls[:0]
	s.controlMu.Unlock()

	s.snapshotMu.Lock()
	s.snapshot = streamSnapshot{channels: make([]ChannelInfo, mod.numChannels)}
	s.snapshotMu.Unlock()

	// Call a rewind() that won't trigger a Sync event.
	s.rewind()

	s.logger.Debug("module loaded",
		slog.String("name", mod.name),
		slog.Int("channels", mod.numChannels),
		slog.Int("orders", len(mod.orders)),
		slog.Int("voices", config.Voices))

	return nil
}

// Seek partially implements io.Seeker.
//
// You can use it for two things:
//  1. (0, SeekStart) for rewind
//  2. (0, SeekCurrent) to get the byte pos inside the stream
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		if offset == 0 {
			s.Rewind()
			return 0, nil
		}

	case io.SeekCurrent:
		if offset == 0 {
			return s.bytePos, nil
		}
	}

	return 0, programmerErrorf("unsupported Seek(%d, %d) call", offset, whence)
}

// Read puts next PCM bytes into provided slice.
//
// Every frame is 4 bytes: two 16-bit LE samples (left and right).
// The tick that doesn't fit into b is kept for the next Read call,
// so any slice size works.
//
// When stream has no bytes to produce, io.EOF error is returned.
func (s *Stream) Read(b []byte) (int, error) {
	if s.sim == nil {
		return 0, programmerErrorf("reading a stream without a module")
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	written := 0
	eof := false
	for len(b) > 0 {
		if len(s.pending) == 0 {
			if s.closed.Load() || !s.nextTick() {
				eof = true
				break
			}
		}
		n := copy(b, s.pending)
		s.pending = s.pending[n:]
		b = b[n:]
		written += n
	}

	s.bytePos += int64(written)

	if eof {
		return written, io.EOF
	}
	return written, nil
}

// Rewind prepares the stream to play the module right from the start.
func (s *Stream) Rewind() {
	if s.sim == nil {
		return
	}
	if s.settings.eventHandler != nil {
		s.settings.eventHandler(StreamEvent{
			Kind: EventSync,
			Time: s.time(),
		})
	}
	s.renderMu.Lock()
	s.rewind()
	s.renderMu.Unlock()
}

func (s *Stream) rewind() {
	s.sim.Reset()
	s.pool.Reset()
	s.pending = nil
	s.bytePos = 0
	s.frame = 0
	for i := range s.rowTriggered {
		s.rowTriggered[i] = false
	}
	for i, muted := range s.muted {
		s.sim.channels[i].muted = muted
	}
	s.publishSnapshot(nil)
}

// Close stops the playback.
// The active voices are discarded; any subsequent Read returns EOF.
//
// Close can be called from any goroutine. It waits for the tick
// that is being rendered to complete.
func (s *Stream) Close() error {
	s.closed.Store(true)
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.pool != nil {
		s.pool.Reset()
	}
	s.pending = nil
	return nil
}

// GetInfo returns stream-related info.
// See StreamInfo for more details.
func (s *Stream) GetInfo() StreamInfo {
	if s.mod == nil {
		return StreamInfo{}
	}
	s.snapshotMu.Lock()
	tempo := s.snapshot.global.Tempo
	s.snapshotMu.Unlock()
	frames := s.sampleRate * 5 / (2 * tempo)
	return StreamInfo{
		BytesPerTick: uint(frames * 4),
		MemoryUsage:  moduleSize(s.mod),
		NumChannels:  s.mod.numChannels,
		NumVoices:    len(s.pool.voices),
	}
}

func (s *Stream) time() float64 {
	if s.sampleRate == 0 {
		return 0
	}
	return float64(s.frame) / float64(s.sampleRate)
}

func (s *Stream) pushControl(c streamControl) {
	s.controlMu.Lock()
	s.controls = append(s.controls, c)
	s.controlMu.Unlock()
}

func (s *Stream) applyControls() {
	s.controlMu.Lock()
	controls := s.controls
	s.controls = s.controls[:0:0]
	s.controlMu.Unlock()

	for _, c := range controls {
		switch c.kind {
		case controlMute:
			s.muted[c.ch] = c.flag
			s.sim.channels[c.ch].muted = c.flag
		case controlPosition:
			// Already validated, the module is immutable.
			_ = s.sim.SetPosition(c.order, c.row)
		case controlLoop:
			s.sim.SetLoopEnabled(c.flag)
		case controlNoteOn:
			_ = s.sim.InjectNote(ChannelID(c.ch), c.note, c.instrument)
		case controlNoteOff:
			s.sim.releaseNote(&s.sim.channels[c.ch], ReleaseOff)
		}
	}
}

// nextTick simulates and renders a single tick into s.pending.
func (s *Stream) nextTick() bool {
	s.applyControls()

	ev := s.sim.Advance()
	if ev.Ended {
		s.publishSnapshot(&ev)
		return false
	}

	if ev.NewRow {
		for i := range s.rowTriggered {
			s.rowTriggered[i] = false
		}
	}
	for i := range s.sim.channels {
		if s.sim.channels[i].triggered {
			s.rowTriggered[i] = true
		}
	}

	s.emitEvents(&ev)
	s.renderTick(ev.Samples)
	s.frame += int64(ev.Samples)
	s.publishSnapshot(&ev)
	return true
}

func (s *Stream) emitEvents(ev *TickEvent) {
	h := s.settings.eventHandler
	if h == nil {
		return
	}
	t := s.time()
	if ev.Looped {
		h(StreamEvent{Kind: EventLoop, Time: t})
	}
	for _, marker := range ev.SyncMarkers {
		h(StreamEvent{Kind: EventMarker, Time: t, value: uint64(marker)})
	}
	for i := range s.sim.channels {
		ch := &s.sim.channels[i]
		if !ch.triggered {
			continue
		}
		h(StreamEvent{
			Kind:    EventNote,
			Channel: i,
			Time:    t,
			value:   packNoteEvent(ch.note, ch.instIndex, float32(ch.volume)/64),
		})
	}
}

func (s *Stream) renderTick(frames int) {
	n := frames * 2
	if cap(s.mix) < n {
		s.mix = make([]float32, n)
	}
	mix := s.mix[:n]
	for i := range mix {
		mix[i] = 0
	}

	for i := range s.pool.voices {
		v := &s.pool.voices[i]
		if !v.active {
			continue
		}
		s.renderer.Render(mix, &v.state, v.pcm)
	}

	size := frames * 4
	if cap(s.pendingBuf) < size {
		s.pendingBuf = make([]byte, size)
	}
	buf := s.pendingBuf[:size]
	scale := s.settings.volumeScaling * mixHeadroom * 32767
	for i, v := range mix {
		sample := int16(clamp(float64(v)*scale, -32768, 32767))
		buf[i*2] = byte(sample)
		buf[i*2+1] = byte(sample >> 8)
	}
	s.pending = buf
}
