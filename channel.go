package itplay

import (
	"github.com/quasilyte/itplay/internal/itdb"
	"github.com/quasilyte/itplay/itfile"
)

// NoteState is a logical channel note lifecycle state.
type NoteState uint8

const (
	NoteSilent NoteState = iota
	NoteSounding
	NoteReleased
	NoteFading
)

func (s NoteState) String() string {
	switch s {
	case NoteSounding:
		return "sounding"
	case NoteReleased:
		return "released"
	case NoteFading:
		return "fading"
	default:
		return "silent"
	}
}

// channelState is a logical channel: a pattern column state.
// It drives at most one foreground voice through the VoiceSink.
type channelState struct {
	id    ChannelID
	muted bool

	instIndex   int
	inst        *itfile.Instrument
	sampleIndex int
	sample      *itfile.Sample

	note  uint8
	state NoteState

	pitch       int
	targetPitch int

	volume        int
	channelVolume int
	pan           int

	// Current row effects.
	cell *patternCell
	vol  itdb.Effect
	fx   itdb.Effect

	// volArg and fxArg are the effect arguments after
	// the "0 reuses the last value" substitution.
	volArg uint8
	fxArg  uint8

	delayTick int
	cutTick   int

	// Per-effect parameter memory.
	volumeSlideMemory        uint8
	channelVolumeSlideMemory uint8
	panningSlideMemory       uint8
	portamentoDownMemory     uint8
	portamentoUpMemory       uint8
	tonePortamentoMemory     uint8
	volumeColumnSlideMemory  uint8
	volumeColumnPortaMemory  uint8
	volumeColumnToneMemory   uint8
	sampleOffsetMemory       uint8
	highOffset               uint8
	arpeggioMemory           uint8
	tremorMemory             uint8
	retriggerMemory          uint8

	vibrato   oscillator
	tremolo   oscillator
	panbrello oscillator

	vibratoOffset   int
	arpeggioOffset  int
	tremoloOffset   int
	panbrelloOffset int

	tremorCount int
	tremorMute  bool

	retriggerCount int

	// triggered is set when a note was started on the current tick.
	triggered bool
}

func (ch *channelState) reset(id ChannelID, mod *module) {
	*ch = channelState{
		id:            id,
		channelVolume: mod.channelVolume[id],
		pan:           mod.channelPanning[id],
	}
	ch.vibrato.seed = uint32(id)*7 + 1
	ch.tremolo.seed = uint32(id)*11 + 3
	ch.panbrello.seed = uint32(id)*13 + 5
}

func (ch *channelState) output() ChannelOutput {
	volume := clamp(ch.volume+ch.tremoloOffset, 0, 64)
	if ch.tremorMute {
		volume = 0
	}
	return ChannelOutput{
		Pitch:         clamp(ch.pitch+ch.vibratoOffset+ch.arpeggioOffset, 0, maxPitch),
		Volume:        volume,
		ChannelVolume: ch.channelVolume,
		Pan:           clamp(ch.pan+ch.panbrelloOffset, 0, 64),
		Muted:         ch.muted,
	}
}

// isSounding reports whether a tone portamento can glide the current note.
func (ch *channelState) isSounding() bool {
	return ch.state != NoteSilent && ch.sample != nil
}

// oscillator is a vibrato, tremolo or panbrello LFO.
type oscillator struct {
	waveform uint8
	phase    uint8
	speed    uint8
	depth    uint8
	seed     uint32
	random   int
}

const (
	waveSine = iota
	waveRampDown
	waveSquare
	waveRandom
)

// noRetrigWaveform is a waveform flag that keeps the phase on a new note.
const noRetrigWaveform = 4

var quarterSine = [17]int{0, 6, 12, 19, 24, 30, 36, 41, 45, 49, 53, 56, 59, 61, 63, 64, 64}

// value returns a waveform value in [-64, 64] for the current phase.
func (o *oscillator) value() int {
	p := int(o.phase & 63)
	switch o.waveform &^ noRetrigWaveform {
	case waveRampDown:
		return 64 - p*2
	case waveSquare:
		if p < 32 {
			return 64
		}
		return -64
	case waveRandom:
		return o.random
	default:
		switch {
		case p <= 16:
			return quarterSine[p]
		case p <= 32:
			return quarterSine[32-p]
		case p <= 48:
			return -quarterSine[p-32]
		default:
			return -quarterSine[64-p]
		}
	}
}

func (o *oscillator) advance() {
	o.phase = (o.phase + o.speed) & 63
	if o.waveform&^noRetrigWaveform == waveRandom {
		o.seed = (o.seed*65 + 17) & 0x1FFFFFFF
		o.random = int((o.seed>>20)&127) - 64
	}
}

func (o *oscillator) setParams(arg uint8) {
	if x := arg >> 4; x != 0 {
		o.speed = x
	}
	if y := arg & 0xf; y != 0 {
		o.depth = y
	}
}

func (o *oscillator) retrigger() {
	if o.waveform&noRetrigWaveform == 0 {
		o.phase = 0
	}
}
