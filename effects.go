package itplay

import (
	"log/slog"

	"github.com/quasilyte/itplay/internal/itdb"
	"github.com/quasilyte/itplay/itfile"
)

// applyRow processes the first tick of a row.
// On the pattern delay repetitions only the first-tick effects are re-applied.
func (sim *Simulation) applyRow(ch *channelState, cell *patternCell, repeat bool) {
	if !repeat {
		sim.loadCell(ch, cell)
	}
	sim.applyTick(ch, 0)
}

func (sim *Simulation) loadCell(ch *channelState, cell *patternCell) {
	ch.cell = cell
	ch.vol = cell.vol
	ch.fx = cell.fx
	if itdb.Conflicts(ch.vol, ch.fx) {
		ch.vol = itdb.Effect{}
	}
	ch.delayTick = 0
	ch.cutTick = 0

	if ch.fx.Op != itdb.EffectTremor {
		ch.tremorMute = false
	}
	if !isVibratoOp(ch.fx.Op) && ch.vol.Op != itdb.VolumeVibratoDepth {
		ch.vibratoOffset = 0
	}
	if ch.fx.Op != itdb.EffectTremolo {
		ch.tremoloOffset = 0
	}
	if ch.fx.Op != itdb.EffectPanbrello {
		ch.panbrelloOffset = 0
	}
	ch.arpeggioOffset = 0

	sim.rememberParams(ch)

	switch ch.fx.Op {
	case itdb.EffectSetVibratoWaveform:
		ch.vibrato.waveform = ch.fxArg & 7
	case itdb.EffectSetTremoloWaveform:
		ch.tremolo.waveform = ch.fxArg & 7
	case itdb.EffectSetPanbrelloWaveform:
		ch.panbrello.waveform = ch.fxArg & 7
	case itdb.EffectHighOffset:
		ch.highOffset = ch.fxArg
	case itdb.EffectNoteDelay:
		ch.delayTick = int(ch.fxArg)
	case itdb.EffectNoteCut:
		ch.cutTick = int(ch.fxArg)
		if ch.cutTick == 0 {
			ch.cutTick = 1
		}
	}

	if ch.delayTick == 0 {
		sim.handleCell(ch, cell)
	}

	switch ch.fx.Op {
	case itdb.EffectSetChannelVolume:
		if ch.fxArg <= 64 {
			ch.channelVolume = int(ch.fxArg)
		}
	case itdb.EffectSetPanning:
		ch.pan = (int(ch.fxArg)*64 + 127) / 255
		ch.panbrelloOffset = 0
	case itdb.EffectPastNotes:
		sim.sink.PastNotes(ch.id, pastNoteActions[ch.fxArg])
	case itdb.EffectSetNNA:
		sim.sink.SetNewNoteAction(ch.id, itfile.NewNoteAction(ch.fxArg))
	case itdb.EffectSetEnvelopePosition:
		sim.sink.SetEnvelopePosition(ch.id, int(ch.fxArg))
	}
}

// pastNoteActions maps the S70..S72 arguments.
var pastNoteActions = [3]ReleaseAction{ReleaseCut, ReleaseOff, ReleaseFade}

func isVibratoOp(op itdb.EffectOp) bool {
	switch op {
	case itdb.EffectVibrato, itdb.EffectFineVibrato, itdb.EffectVibratoVolumeSlide:
		return true
	}
	return false
}

// rememberParams implements the "0 reuses the last value" rule.
// Every effect has its own memory slot.
func (sim *Simulation) rememberParams(ch *channelState) {
	ch.fxArg = ch.fx.Arg
	switch ch.fx.Op {
	case itdb.EffectVolumeSlide, itdb.EffectVibratoVolumeSlide, itdb.EffectTonePortamentoVolumeSlide:
		ch.fxArg = remember(&ch.volumeSlideMemory, ch.fx.Arg)
	case itdb.EffectChannelVolumeSlide:
		ch.fxArg = remember(&ch.channelVolumeSlideMemory, ch.fx.Arg)
	case itdb.EffectPanningSlide:
		ch.fxArg = remember(&ch.panningSlideMemory, ch.fx.Arg)
	case itdb.EffectPortamentoDown:
		ch.fxArg = remember(&ch.portamentoDownMemory, ch.fx.Arg)
	case itdb.EffectPortamentoUp:
		ch.fxArg = remember(&ch.portamentoUpMemory, ch.fx.Arg)
	case itdb.EffectTonePortamento:
		ch.fxArg = remember(&ch.tonePortamentoMemory, ch.fx.Arg)
	case itdb.EffectSampleOffset:
		ch.fxArg = remember(&ch.sampleOffsetMemory, ch.fx.Arg)
	case itdb.EffectArpeggio:
		ch.fxArg = remember(&ch.arpeggioMemory, ch.fx.Arg)
	case itdb.EffectTremor:
		ch.fxArg = remember(&ch.tremorMemory, ch.fx.Arg)
	case itdb.EffectRetrigger:
		ch.fxArg = remember(&ch.retriggerMemory, ch.fx.Arg)
	case itdb.EffectVibrato, itdb.EffectFineVibrato:
		ch.vibrato.setParams(ch.fx.Arg)
	case itdb.EffectTremolo:
		ch.tremolo.setParams(ch.fx.Arg)
	case itdb.EffectPanbrello:
		ch.panbrello.setParams(ch.fx.Arg)
	}

	ch.volArg = ch.vol.Arg
	switch ch.vol.Op {
	case itdb.VolumeFineSlideUp, itdb.VolumeFineSlideDown, itdb.VolumeSlideUp, itdb.VolumeSlideDown:
		ch.volArg = remember(&ch.volumeColumnSlideMemory, ch.vol.Arg)
	case itdb.VolumePortamentoDown, itdb.VolumePortamentoUp:
		ch.volArg = remember(&ch.volumeColumnPortaMemory, ch.vol.Arg)
	case itdb.VolumeTonePortamento:
		ch.volArg = remember(&ch.volumeColumnToneMemory, itdb.VolumeTonePortamentoSpeed(ch.vol.Arg))
	case itdb.VolumeVibratoDepth:
		if ch.vol.Arg != 0 {
			ch.vibrato.depth = ch.vol.Arg
		}
	}
}

func remember(memory *uint8, arg uint8) uint8 {
	if arg == 0 {
		return *memory
	}
	*memory = arg
	return arg
}

// handleCell processes the note, instrument and volume columns.
func (sim *Simulation) handleCell(ch *channelState, cell *patternCell) {
	raw := &cell.raw

	if raw.Mask.Has(itfile.CellInstrument) {
		index := int(raw.Instrument)
		if index == 0 || index > len(sim.mod.instruments) {
			sim.diag.CorruptCells++
			sim.logger.Debug("cell references a missing instrument",
				slog.Int("channel", int(ch.id)),
				slog.Int("instrument", index))
		} else {
			ch.instIndex = index
			ch.inst = &sim.mod.instruments[index-1]
		}
	}

	if raw.Mask.Has(itfile.CellNote) {
		switch note := raw.Note; {
		case note == itfile.NoteOff:
			sim.releaseNote(ch, ReleaseOff)
		case note == itfile.NoteCut:
			sim.releaseNote(ch, ReleaseCut)
		case note == itfile.NoteFade:
			sim.releaseNote(ch, ReleaseFade)
		case note >= itfile.NumNotes:
			sim.diag.CorruptCells++
			sim.logger.Debug("cell has an invalid note",
				slog.Int("channel", int(ch.id)),
				slog.Int("note", int(note)))
		default:
			sim.triggerNote(ch, note)
		}
	} else if raw.Mask.Has(itfile.CellInstrument) && ch.isSounding() {
		// An instrument without a note resets the volume.
		ch.volume = int(ch.sample.DefaultVolume)
	}

	switch ch.vol.Op {
	case itdb.VolumeSetVolume:
		ch.volume = int(ch.volArg)
	case itdb.VolumeSetPanning:
		ch.pan = int(ch.volArg)
		ch.panbrelloOffset = 0
	}
}

func (sim *Simulation) releaseNote(ch *channelState, action ReleaseAction) {
	if ch.state == NoteSilent {
		return
	}
	sim.sink.Release(ch.id, action)
	switch action {
	case ReleaseOff:
		ch.state = NoteReleased
	case ReleaseCut:
		ch.state = NoteSilent
	case ReleaseFade:
		ch.state = NoteFading
	}
}

func (sim *Simulation) usesTonePortamento(ch *channelState) bool {
	switch ch.fx.Op {
	case itdb.EffectTonePortamento, itdb.EffectTonePortamentoVolumeSlide:
		return true
	}
	return ch.vol.Op == itdb.VolumeTonePortamento
}

func (sim *Simulation) triggerNote(ch *channelState, note uint8) {
	if ch.inst == nil {
		// A note without any instrument to play it.
		sim.diag.IgnoredNotes++
		return
	}

	entry := ch.inst.Keymap[note]
	if entry.Sample == 0 || int(entry.Sample) > len(sim.mod.samples) {
		sim.diag.IgnoredNotes++
		return
	}
	smp := &sim.mod.samples[entry.Sample-1]
	if smp.Length == 0 {
		sim.diag.IgnoredNotes++
		return
	}
	mapped := entry.Note
	if mapped >= itfile.NumNotes {
		mapped = note
	}

	if sim.usesTonePortamento(ch) && ch.isSounding() {
		ch.targetPitch = notePitch(mapped)
		if ch.cell != nil && ch.cell.raw.Mask.Has(itfile.CellInstrument) {
			ch.volume = int(ch.sample.DefaultVolume)
		}
		return
	}

	ch.sample = smp
	ch.sampleIndex = int(entry.Sample)
	ch.note = note
	ch.pitch = notePitch(mapped)
	ch.targetPitch = ch.pitch
	ch.volume = int(smp.DefaultVolume)
	switch {
	case ch.inst.DefaultPanEnabled:
		ch.pan = int(ch.inst.DefaultPan)
	case smp.DefaultPanEnabled:
		ch.pan = int(smp.DefaultPan)
	}

	ch.vibrato.retrigger()
	ch.tremolo.retrigger()
	ch.retriggerCount = 0
	ch.tremorCount = 0

	offset := 0
	if ch.fx.Op == itdb.EffectSampleOffset {
		offset = int(ch.fxArg)<<8 | int(ch.highOffset)<<16
	}

	sim.sink.NoteOn(NoteOn{
		Channel:    ch.id,
		Note:       note,
		Instrument: ch.instIndex,
		Sample:     ch.sampleIndex,
		Inst:       ch.inst,
		Smp:        smp,
		Offset:     offset,
	})
	ch.state = NoteSounding
	ch.triggered = true
}

// applyTick processes the continuous effects.
// It's called for every tick, including the first one.
func (sim *Simulation) applyTick(ch *channelState, tick int) {
	first := tick == 0

	if ch.delayTick != 0 && tick == ch.delayTick && ch.cell != nil {
		ch.delayTick = 0
		sim.handleCell(ch, ch.cell)
	}
	if ch.cutTick != 0 && tick == ch.cutTick {
		ch.volume = 0
	}

	switch ch.vol.Op {
	case itdb.VolumeFineSlideUp:
		if first {
			ch.volume = clampMax(ch.volume+int(ch.volArg), 64)
		}
	case itdb.VolumeFineSlideDown:
		if first {
			ch.volume = clampMin(ch.volume-int(ch.volArg), 0)
		}
	case itdb.VolumeSlideUp:
		if !first {
			ch.volume = clampMax(ch.volume+int(ch.volArg), 64)
		}
	case itdb.VolumeSlideDown:
		if !first {
			ch.volume = clampMin(ch.volume-int(ch.volArg), 0)
		}
	case itdb.VolumePortamentoDown:
		if !first {
			sim.slidePitch(ch, -4*int(ch.volArg))
		}
	case itdb.VolumePortamentoUp:
		if !first {
			sim.slidePitch(ch, 4*int(ch.volArg))
		}
	case itdb.VolumeTonePortamento:
		if !first {
			sim.tonePortamento(ch, ch.volArg)
		}
	case itdb.VolumeVibratoDepth:
		sim.vibrato(ch, first, false)
	}

	switch ch.fx.Op {
	case itdb.EffectVolumeSlide:
		ch.volume = slideParam(ch.volume, ch.fxArg, first, 64)

	case itdb.EffectChannelVolumeSlide:
		ch.channelVolume = slideParam(ch.channelVolume, ch.fxArg, first, 64)

	case itdb.EffectPanningSlide:
		ch.pan = panSlideParam(ch.pan, ch.fxArg, first)

	case itdb.EffectPortamentoDown:
		sim.portamento(ch, ch.fxArg, first, -1)

	case itdb.EffectPortamentoUp:
		sim.portamento(ch, ch.fxArg, first, 1)

	case itdb.EffectTonePortamento:
		if !first {
			sim.tonePortamento(ch, ch.fxArg)
		}

	case itdb.EffectTonePortamentoVolumeSlide:
		if !first {
			sim.tonePortamento(ch, ch.tonePortamentoMemory)
		}
		ch.volume = slideParam(ch.volume, ch.fxArg, first, 64)

	case itdb.EffectVibrato:
		sim.vibrato(ch, first, false)

	case itdb.EffectFineVibrato:
		sim.vibrato(ch, first, true)

	case itdb.EffectVibratoVolumeSlide:
		sim.vibrato(ch, first, false)
		ch.volume = slideParam(ch.volume, ch.fxArg, first, 64)

	case itdb.EffectTremolo:
		if !first {
			ch.tremolo.advance()
		}
		ch.tremoloOffset = ch.tremolo.value() * int(ch.tremolo.depth) / 32

	case itdb.EffectPanbrello:
		if !first {
			ch.panbrello.advance()
		}
		ch.panbrelloOffset = ch.panbrello.value() * int(ch.panbrello.depth) / 32

	case itdb.EffectArpeggio:
		var semitones uint8
		switch tick % 3 {
		case 1:
			semitones = ch.fxArg >> 4
		case 2:
			semitones = ch.fxArg & 0xf
		}
		ch.arpeggioOffset = int(semitones) * pitchUnitsPerSemitone

	case itdb.EffectTremor:
		on := int(ch.fxArg >> 4)
		off := int(ch.fxArg & 0xf)
		if on == 0 {
			on = 1
		}
		if off == 0 {
			off = 1
		}
		ch.tremorMute = ch.tremorCount >= on
		ch.tremorCount = (ch.tremorCount + 1) % (on + off)

	case itdb.EffectRetrigger:
		if !first {
			sim.retrigger(ch)
		}
	}
}

func (sim *Simulation) slidePitch(ch *channelState, delta int) {
	ch.pitch = clamp(ch.pitch+delta, 0, maxPitch)
}

// portamento implements the E and F commands.
// Fx is a fine slide (x*4 units), Ex is an extra fine slide (x units);
// both are applied on the first tick only.
func (sim *Simulation) portamento(ch *channelState, arg uint8, first bool, dir int) {
	switch arg >> 4 {
	case 0xf:
		if first {
			sim.slidePitch(ch, dir*4*int(arg&0xf))
		}
	case 0xe:
		if first {
			sim.slidePitch(ch, dir*int(arg&0xf))
		}
	default:
		if !first {
			sim.slidePitch(ch, dir*4*int(arg))
		}
	}
}

func (sim *Simulation) tonePortamento(ch *channelState, speed uint8) {
	if ch.pitch == ch.targetPitch {
		return
	}
	ch.pitch = slideTowards(ch.pitch, ch.targetPitch, 4*int(speed))
}

func (sim *Simulation) vibrato(ch *channelState, first, fine bool) {
	if !first {
		ch.vibrato.advance()
	}
	shift := 4
	if fine {
		shift = 6
	}
	ch.vibratoOffset = (ch.vibrato.value() * int(ch.vibrato.depth)) >> shift
}

func (sim *Simulation) retrigger(ch *channelState) {
	interval := int(ch.fxArg & 0xf)
	if interval == 0 || !ch.isSounding() {
		return
	}
	ch.retriggerCount++
	if ch.retriggerCount < interval {
		return
	}
	ch.retriggerCount = 0
	ch.volume = retriggerVolume(ch.volume, ch.fxArg>>4)
	sim.sink.Retrigger(ch.id, 0)
	ch.triggered = true
}

func retriggerVolume(v int, op uint8) int {
	switch op {
	case 0x1:
		v--
	case 0x2:
		v -= 2
	case 0x3:
		v -= 4
	case 0x4:
		v -= 8
	case 0x5:
		v -= 16
	case 0x6:
		v = v * 2 / 3
	case 0x7:
		v /= 2
	case 0x9:
		v++
	case 0xA:
		v += 2
	case 0xB:
		v += 4
	case 0xC:
		v += 8
	case 0xD:
		v += 16
	case 0xE:
		v = v * 3 / 2
	case 0xF:
		v *= 2
	}
	return clamp(v, 0, 64)
}
