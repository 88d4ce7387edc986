package itplay

import (
	"io"
	"log/slog"

	"github.com/quasilyte/itplay/itfile"
)

// SimulationConfig configures the simulation core.
//
// Zero values mean "use the module defaults".
type SimulationConfig struct {
	// SampleRate is used to convert ticks into frames.
	// A zero value means 44100.
	SampleRate int

	// Speed is a number of ticks per row.
	Speed int

	// Tempo controls the tick duration (2.5/tempo seconds).
	Tempo int

	// TimerPrecision is a number of fractional bits used
	// to accumulate the tick durations.
	// A zero value means 16; the max value is 32.
	TimerPrecision uint

	// NoLoop makes the song end instead of wrapping around.
	NoLoop bool

	// Logger receives the debug records about absorbed data faults.
	// A nil logger discards everything.
	Logger *slog.Logger
}

func (config *SimulationConfig) applyDefaults() error {
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	if config.SampleRate < 1000 || config.SampleRate > 384000 {
		return invalidModuleErrorf("unsupported sample rate: %d", config.SampleRate)
	}
	if config.TimerPrecision == 0 {
		config.TimerPrecision = defaultTimerPrecision
	}
	if config.TimerPrecision > maxTimerPrecision {
		return programmerErrorf("timer precision %d is too high (max is %d)", config.TimerPrecision, maxTimerPrecision)
	}
	if config.Logger == nil {
		config.Logger = discardLogger()
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Simulation is the deterministic playback core:
// the sequencer clock, the effect processor and the logical channels.
//
// Voice-level commands are sent to the VoiceSink.
// The same code runs the audible playback, the timing prediction and
// the MIDI export, so they always agree on the timing.
type Simulation struct {
	mod    *module
	config SimulationConfig
	sink   VoiceSink

	seq      sequencer
	channels []channelState

	diag   Diagnostics
	logger *slog.Logger
}

// NewSimulation compiles the module and prepares a simulation that
// starts at the first order.
func NewSimulation(m *itfile.Module, sink VoiceSink, config SimulationConfig) (*Simulation, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	mod, err := compileModule(m, config.Logger)
	if err != nil {
		return nil, err
	}
	return newSimulation(mod, sink, config), nil
}

// newSimulation expects the config defaults to be applied.
func newSimulation(mod *module, sink VoiceSink, config SimulationConfig) *Simulation {
	if sink == nil {
		sink = nopSink{}
	}
	sim := &Simulation{
		mod:      mod,
		config:   config,
		sink:     sink,
		channels: make([]channelState, mod.numChannels),
		logger:   config.Logger,
	}
	sim.diag.CorruptCells = mod.corruptCells
	sim.diag.DisabledVolumeCommands = mod.disabledVolumeCommands
	sim.seq.init(mod, &sim.config, &sim.diag)
	sim.resetChannels()
	return sim
}

func (sim *Simulation) resetChannels() {
	for i := range sim.channels {
		sim.channels[i].reset(ChannelID(i), sim.mod)
	}
}

// Reset rewinds the simulation to the song start.
func (sim *Simulation) Reset() {
	sim.seq.reset(&sim.config)
	sim.resetChannels()
}

// NumChannels returns the number of logical channels.
func (sim *Simulation) NumChannels() int { return sim.mod.numChannels }

// Diagnostics returns the absorbed faults counters.
func (sim *Simulation) Diagnostics() Diagnostics { return sim.diag }

// SetLoopEnabled controls whether the song wraps around or ends.
func (sim *Simulation) SetLoopEnabled(enabled bool) {
	sim.seq.loopEnabled = enabled
}

// SetPosition moves the song position.
// The next Advance call will load the specified row.
func (sim *Simulation) SetPosition(order, row int) error {
	if err := sim.mod.validatePosition(order, row); err != nil {
		return err
	}
	sim.seq.setPosition(order, row)
	return nil
}

// Cursor returns the current song position.
func (sim *Simulation) Cursor() (order, row, tick int) {
	return sim.seq.order, sim.seq.row, sim.seq.tick
}

// Looped reports whether the song has wrapped at least once.
func (sim *Simulation) Looped() bool { return sim.seq.looped }

// Advance simulates exactly one tick.
func (sim *Simulation) Advance() TickEvent {
	var ev TickEvent
	if !sim.seq.beginTick(&ev) {
		ev.Ended = true
		return ev
	}

	for i := range sim.channels {
		sim.channels[i].triggered = false
	}

	if ev.NewRow || ev.RowRepeat {
		cells := sim.seq.currentRow()
		for i := range sim.channels {
			sim.applyRow(&sim.channels[i], &cells[i], ev.RowRepeat)
		}
	} else {
		for i := range sim.channels {
			sim.applyTick(&sim.channels[i], ev.Tick)
		}
	}

	for i := range sim.channels {
		ch := &sim.channels[i]
		if !sim.sink.Update(ch.id, ch.output()) && ch.state != NoteSilent {
			// The voice was reclaimed by the allocator.
			ch.state = NoteSilent
		}
	}
	sim.sink.EndTick(sim.seq.globalVolume)

	sim.seq.endTick(&ev)
	return ev
}

// InjectNote plays a note on the channel as if it was a pattern cell
// without any effects. It's used by the Synthesizer.
func (sim *Simulation) InjectNote(ch ChannelID, note uint8, instrument int) error {
	if int(ch) < 0 || int(ch) >= len(sim.channels) {
		return programmerErrorf("channel %d is out of range [0, %d)", ch, len(sim.channels))
	}
	if instrument <= 0 || instrument > len(sim.mod.instruments) {
		return programmerErrorf("instrument %d is out of range [1, %d]", instrument, len(sim.mod.instruments))
	}
	cell := patternCell{
		raw: itfile.Cell{
			Channel:    uint8(ch),
			Mask:       itfile.CellNote | itfile.CellInstrument,
			Note:       note,
			Instrument: uint8(instrument),
		},
	}
	c := &sim.channels[ch]
	c.vol = cell.vol
	c.fx = cell.fx
	sim.handleCell(c, &cell)
	return nil
}
