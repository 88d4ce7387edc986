package itplay

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/quasilyte/itplay/itfile"
)

const (
	defaultNumVoices = 64

	// fadeScale is a full fade-out level.
	fadeScale = 1024

	// minForcedFadeRate is used for the NNA and DCA fades,
	// so the voice goes away even if the instrument has no fade-out.
	minForcedFadeRate = 32
)

// physicalVoice is a sample playback slot.
type physicalVoice struct {
	gen    uint32
	active bool

	owner ChannelID

	// protected is set for the voices that were detached from
	// their channel with the NNA "continue" action.
	// Such voices are never stolen.
	protected bool

	nna itfile.NewNoteAction

	inst        *itfile.Instrument
	instIndex   int
	sample      *itfile.Sample
	sampleIndex int
	note        uint8

	// serial is a trigger order number, used to find the oldest voice.
	serial uint64

	keyOn    bool
	fading   bool
	fade     int
	fadeRate int

	volumeEnvelope  envelopeCursor
	panningEnvelope envelopeCursor
	pitchEnvelope   envelopeCursor

	volumeSwing float64
	panSwing    int

	out ChannelOutput

	// loudness is the last computed volume in [0, 1].
	loudness float64

	state VoiceState
	pcm   []int16
}

// voicePool is a fixed-size physical voice arena.
// It implements VoiceSink with the IT NNA semantics.
type voicePool struct {
	voices     []physicalVoice
	foreground []VoiceHandle

	samples    itfile.SampleStore
	sampleRate int

	rand   *rand.Rand
	serial uint64

	diag   *Diagnostics
	logger *slog.Logger
}

type voicePoolConfig struct {
	numVoices   int
	numChannels int
	sampleRate  int
	seed        int64
	samples     itfile.SampleStore
	diag        *Diagnostics
	logger      *slog.Logger
}

func newVoicePool(config voicePoolConfig) *voicePool {
	p := &voicePool{
		voices:     make([]physicalVoice, config.numVoices),
		foreground: make([]VoiceHandle, config.numChannels),
		samples:    config.samples,
		sampleRate: config.sampleRate,
		rand:       rand.New(rand.NewSource(config.seed)),
		diag:       config.diag,
		logger:     config.logger,
	}
	for i := range p.foreground {
		p.foreground[i] = NoVoice
	}
	return p
}

// Reset releases all voices immediately.
func (p *voicePool) Reset() {
	for i := range p.voices {
		if p.voices[i].active {
			p.free(i)
		}
	}
	for i := range p.foreground {
		p.foreground[i] = NoVoice
	}
}

// ActiveVoices returns the number of voices in use.
func (p *voicePool) ActiveVoices() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}

func (p *voicePool) handle(i int) VoiceHandle {
	return VoiceHandle{index: int32(i), gen: p.voices[i].gen}
}

func (p *voicePool) resolve(h VoiceHandle) *physicalVoice {
	if !h.IsValid() || int(h.index) >= len(p.voices) {
		return nil
	}
	v := &p.voices[h.index]
	if !v.active || v.gen != h.gen {
		return nil
	}
	return v
}

// foregroundVoice returns the channel voice index or -1.
func (p *voicePool) foregroundVoice(ch ChannelID) int {
	h := p.foreground[ch]
	if p.resolve(h) == nil {
		p.foreground[ch] = NoVoice
		return -1
	}
	return int(h.index)
}

func (p *voicePool) free(i int) {
	v := &p.voices[i]
	v.active = false
	v.gen++
	v.pcm = nil
}

func (p *voicePool) detach(ch ChannelID) {
	p.foreground[ch] = NoVoice
}

func (p *voicePool) NoteOn(n NoteOn) VoiceHandle {
	pcm := p.samples.SampleData(n.Smp.Handle)
	if len(pcm) == 0 {
		p.diag.IgnoredNotes++
		return NoVoice
	}

	prev := p.foregroundVoice(n.Channel)

	// The envelope positions may be carried over to the new voice.
	var carry *physicalVoice
	if prev != -1 && p.voices[prev].instIndex == n.Instrument {
		carried := p.voices[prev]
		carry = &carried
	}

	// Step 1: duplicate check.
	if n.Inst.DCT != itfile.DCTNone {
		for i := range p.voices {
			v := &p.voices[i]
			if !v.active || v.owner != n.Channel || !isDuplicateNote(v, n) {
				continue
			}
			if i == prev {
				p.detach(n.Channel)
				prev = -1
			}
			switch n.Inst.DCA {
			case itfile.DCACut:
				p.free(i)
			case itfile.DCAOff:
				p.keyOff(v)
			case itfile.DCAFade:
				p.startFade(v, true)
			}
		}
	}

	// Step 2: the new note action for the previous channel voice.
	if prev != -1 {
		p.detach(n.Channel)
		v := &p.voices[prev]
		switch v.nna {
		case itfile.NNACut:
			p.free(prev)
		case itfile.NNAContinue:
			v.protected = true
		case itfile.NNAOff:
			p.keyOff(v)
		case itfile.NNAFade:
			p.startFade(v, true)
		}
	}

	// Step 3: admission.
	i := p.findSlot()
	if i == -1 {
		p.diag.DroppedNotes++
		p.logger.Debug("voice pool is exhausted, note dropped",
			slog.Int("channel", int(n.Channel)),
			slog.Int("note", int(n.Note)))
		return NoVoice
	}
	if p.voices[i].active {
		p.free(i)
	}

	// Step 4: bind.
	p.bind(i, n, pcm, carry)
	h := p.handle(i)
	p.foreground[n.Channel] = h
	return h
}

func isDuplicateNote(v *physicalVoice, n NoteOn) bool {
	switch n.Inst.DCT {
	case itfile.DCTNote:
		return v.instIndex == n.Instrument && v.note == n.Note
	case itfile.DCTSample:
		return v.sampleIndex == n.Sample
	case itfile.DCTInstrument:
		return v.instIndex == n.Instrument
	}
	return false
}

// findSlot returns a free voice index or a victim to steal.
// The victims are chosen among the unprotected voices:
// fully decayed first, then the quietest fading ones, then the oldest ones.
func (p *voicePool) findSlot() int {
	victim := -1
	victimClass := 0
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			return i
		}
		if v.protected {
			continue
		}
		class := 2
		switch {
		case v.state.Ended || v.fade == 0:
			class = 0
		case v.fading || !v.keyOn:
			class = 1
		}
		if victim == -1 || class < victimClass {
			victim = i
			victimClass = class
			continue
		}
		if class > victimClass {
			continue
		}
		best := &p.voices[victim]
		switch class {
		case 1:
			if v.loudness < best.loudness {
				victim = i
			}
		case 2:
			if v.serial < best.serial {
				victim = i
			}
		}
	}
	return victim
}

func (p *voicePool) bind(i int, n NoteOn, pcm []int16, carry *physicalVoice) {
	v := &p.voices[i]
	gen := v.gen
	*v = physicalVoice{
		gen:         gen,
		active:      true,
		owner:       n.Channel,
		nna:         n.Inst.NNA,
		inst:        n.Inst,
		instIndex:   n.Instrument,
		sample:      n.Smp,
		sampleIndex: n.Sample,
		note:        n.Note,
		keyOn:       true,
		fade:        fadeScale,
		volumeSwing: 1,
		pcm:         pcm,
		loudness:    1,
	}
	p.serial++
	v.serial = p.serial

	if carry != nil {
		if n.Inst.VolumeEnvelope.Flags.CarryEnabled() {
			v.volumeEnvelope = carry.volumeEnvelope
		}
		if n.Inst.PanningEnvelope.Flags.CarryEnabled() {
			v.panningEnvelope = carry.panningEnvelope
		}
		if n.Inst.PitchEnvelope.Flags.CarryEnabled() {
			v.pitchEnvelope = carry.pitchEnvelope
		}
	}

	if n.Inst.RandomVolume != 0 {
		swing := float64(n.Inst.RandomVolume) / 100
		v.volumeSwing = clamp(1+swing*(p.rand.Float64()*2-1), 0, 1)
	}
	if n.Inst.RandomPan != 0 {
		r := int(n.Inst.RandomPan)
		v.panSwing = p.rand.Intn(2*r+1) - r
	}

	length := clampMax(n.Smp.Length, len(pcm))
	offset := n.Offset
	if offset >= length {
		offset = 0
	}
	v.state = VoiceState{
		Channel:      n.Channel,
		Sample:       n.Smp,
		Position:     int64(offset) << 32,
		Length:       length,
		Loop:         n.Smp.Loop,
		LoopStart:    clampMax(n.Smp.LoopStart, length),
		LoopEnd:      clampMax(n.Smp.LoopEnd, length),
		FilterCutoff: -1,
	}
	if v.state.LoopEnd <= v.state.LoopStart {
		v.state.Loop = itfile.LoopNone
	}
}

func (p *voicePool) keyOff(v *physicalVoice) {
	v.keyOn = false
	env := &v.inst.VolumeEnvelope
	if !env.Enabled() || env.Flags.LoopEnabled() {
		p.startFade(v, false)
	}
}

func (p *voicePool) startFade(v *physicalVoice, forced bool) {
	v.fading = true
	rate := v.inst.FadeOut
	if forced || rate == 0 {
		rate = clampMin(rate, minForcedFadeRate)
	}
	if v.fadeRate == 0 || rate > v.fadeRate {
		v.fadeRate = rate
	}
}

func (p *voicePool) Release(ch ChannelID, action ReleaseAction) {
	i := p.foregroundVoice(ch)
	if i == -1 {
		return
	}
	v := &p.voices[i]
	switch action {
	case ReleaseOff:
		p.keyOff(v)
	case ReleaseCut:
		p.free(i)
		p.detach(ch)
	case ReleaseFade:
		p.startFade(v, false)
	}
}

func (p *voicePool) PastNotes(ch ChannelID, action ReleaseAction) {
	fg := p.foregroundVoice(ch)
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active || v.owner != ch || i == fg {
			continue
		}
		switch action {
		case ReleaseOff:
			p.keyOff(v)
		case ReleaseCut:
			p.free(i)
		case ReleaseFade:
			p.startFade(v, true)
		}
	}
}

func (p *voicePool) SetNewNoteAction(ch ChannelID, nna itfile.NewNoteAction) {
	if i := p.foregroundVoice(ch); i != -1 {
		p.voices[i].nna = nna
	}
}

func (p *voicePool) Retrigger(ch ChannelID, offset int) {
	i := p.foregroundVoice(ch)
	if i == -1 {
		return
	}
	v := &p.voices[i]
	if offset >= v.state.Length {
		offset = 0
	}
	v.state.Position = int64(offset) << 32
	v.state.Reverse = false
	v.state.Ended = false
}

func (p *voicePool) SetEnvelopePosition(ch ChannelID, tick int) {
	i := p.foregroundVoice(ch)
	if i == -1 {
		return
	}
	v := &p.voices[i]
	v.volumeEnvelope.setTick(tick)
	v.panningEnvelope.setTick(tick)
	v.pitchEnvelope.setTick(tick)
}

func (p *voicePool) Update(ch ChannelID, out ChannelOutput) bool {
	i := p.foregroundVoice(ch)
	if i == -1 {
		return false
	}
	p.voices[i].out = out
	return true
}

func (p *voicePool) EndTick(globalVolume int) {
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		if !p.tickVoice(v, globalVolume) {
			p.free(i)
		}
	}
}

// tickVoice computes the renderer parameters for this tick.
// It returns false if the voice is finished.
func (p *voicePool) tickVoice(v *physicalVoice, globalVolume int) bool {
	if v.state.Ended {
		return false
	}

	inst := v.inst

	envVolume := 64
	if env := &inst.VolumeEnvelope; env.Enabled() {
		envVolume = clamp(v.volumeEnvelope.step(env, v.keyOn), 0, 64)
		if v.volumeEnvelope.finished {
			if envVolume == 0 {
				return false
			}
			if !v.fading {
				p.startFade(v, false)
			}
		}
	}
	envPan := 0
	if env := &inst.PanningEnvelope; env.Enabled() {
		envPan = v.panningEnvelope.step(env, v.keyOn)
	}
	envPitch := 0
	v.state.FilterCutoff = -1
	if env := &inst.PitchEnvelope; env.Enabled() {
		value := v.pitchEnvelope.step(env, v.keyOn)
		if env.Flags.IsFilter() {
			v.state.FilterCutoff = clamp((value+32)*2, 0, 128)
		} else {
			envPitch = value
		}
	}

	if v.fading {
		v.fade -= v.fadeRate
		if v.fade <= 0 {
			v.fade = 0
			return false
		}
	}

	out := v.out
	volume := float64(out.Volume) / 64 *
		float64(out.ChannelVolume) / 64 *
		float64(v.sample.GlobalVolume) / 64 *
		float64(inst.GlobalVolume) / 128 *
		float64(envVolume) / 64 *
		float64(v.fade) / fadeScale *
		float64(globalVolume) / 128 *
		v.volumeSwing
	if out.Muted {
		volume = 0
	}
	v.loudness = volume

	pan := clamp(out.Pan+v.panSwing, 0, 64)
	if envPan != 0 {
		pan = clamp(pan+envPan*(32-abs(pan-32))/32, 0, 64)
	}
	panning := float64(pan) / 64
	v.state.VolumeLeft = volume * math.Sqrt(1-panning)
	v.state.VolumeRight = volume * math.Sqrt(panning)

	freq := linearFrequency(v.sample.C5Speed, out.Pitch+envPitch*32)
	v.state.Step = pitchStep(freq, p.sampleRate)

	return true
}
