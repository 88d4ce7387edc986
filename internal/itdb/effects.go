package itdb

import (
	"github.com/quasilyte/itplay/itfile"
)

// Effect is a decoded effect column or volume column command.
type Effect struct {
	Op  EffectOp
	Arg uint8
}

func (e Effect) IsEmpty() bool { return e.Op == EffectNone }

// Nibbles returns the high and low parts of the argument.
func (e Effect) Nibbles() (x, y uint8) { return e.Arg >> 4, e.Arg & 0xf }

type EffectOp uint8

const (
	EffectNone EffectOp = iota

	// Encoding: Axx
	// Arg: ticks per row, 0 is ignored
	EffectSetSpeed

	// Encoding: Bxx
	// Arg: order index
	EffectPositionJump

	// Encoding: Cxx
	// Arg: row index in the next pattern
	EffectPatternBreak

	// Encoding: SBx
	// Arg: 0 marks the loop start, otherwise a loop count
	EffectPatternLoop

	// Encoding: SEx
	// Arg: number of times the row is repeated
	EffectPatternDelayRows

	// Encoding: S6x
	// Arg: extra ticks for this row
	EffectPatternDelayTicks

	// Encoding: Txx
	// Arg: >=0x20 is a tempo, 0x0x slides down, 0x1x slides up, 0 reuses the last value
	EffectTempo

	// Encoding: Vxx
	// Arg: global volume [0, 128]
	EffectSetGlobalVolume

	// Encoding: Wxy
	// Arg: same as in volume slide
	EffectGlobalVolumeSlide

	// Encoding: Zxx
	// Arg: marker ID
	EffectSyncMarker

	// Encoding: Dxy
	// Arg: x0 slides up, 0y slides down, xF and Fy are fine slides
	EffectVolumeSlide

	// Encoding: Exx
	// Arg: xx regular, Fx fine, Ex extra fine
	EffectPortamentoDown

	// Encoding: Fxx
	// Arg: xx regular, Fx fine, Ex extra fine
	EffectPortamentoUp

	// Encoding: Gxx
	// Arg: glide speed
	EffectTonePortamento

	// Encoding: Hxy
	// Arg: speed and depth
	EffectVibrato

	// Encoding: Ixy
	// Arg: on and off ticks
	EffectTremor

	// Encoding: Jxy
	// Arg: semitone offsets
	EffectArpeggio

	// Encoding: Kxy
	// Arg: volume slide, vibrato continues with the last parameters
	EffectVibratoVolumeSlide

	// Encoding: Lxy
	// Arg: volume slide, portamento continues with the last speed
	EffectTonePortamentoVolumeSlide

	// Encoding: Mxx
	// Arg: channel volume [0, 64]
	EffectSetChannelVolume

	// Encoding: Nxy
	// Arg: same as in volume slide
	EffectChannelVolumeSlide

	// Encoding: Oxx
	// Arg: offset in 256-frame units
	EffectSampleOffset

	// Encoding: Pxy
	// Arg: x0 slides right, 0y slides left, xF and Fy are fine slides
	EffectPanningSlide

	// Encoding: Qxy
	// Arg: volume change kind and the retrigger interval
	EffectRetrigger

	// Encoding: Rxy
	// Arg: speed and depth
	EffectTremolo

	// Encoding: Uxy
	// Arg: speed and depth (4 times finer than Hxy)
	EffectFineVibrato

	// Encoding: Xxx [or] S8x
	// Arg: panning [0, 255]
	EffectSetPanning

	// Encoding: Yxy
	// Arg: speed and depth
	EffectPanbrello

	// Encoding: S3x
	// Arg: waveform
	EffectSetVibratoWaveform

	// Encoding: S4x
	// Arg: waveform
	EffectSetTremoloWaveform

	// Encoding: S5x
	// Arg: waveform
	EffectSetPanbrelloWaveform

	// Encoding: S70, S71, S72
	// Arg: 0=cut, 1=off, 2=fade
	EffectPastNotes

	// Encoding: S73..S76
	// Arg: itfile.NewNoteAction
	EffectSetNNA

	// Encoding: SAx
	// Arg: the high part of the sample offset
	EffectHighOffset

	// Encoding: SCx
	// Arg: tick number
	EffectNoteCut

	// Encoding: SDx
	// Arg: tick number
	EffectNoteDelay

	// Encoding: extended command
	// Arg: envelope tick
	EffectSetEnvelopePosition

	// Encoding: volume column [0, 64]
	// Arg: volume
	VolumeSetVolume

	// Encoding: volume column a, b
	// Arg: [0, 9]
	VolumeFineSlideUp
	VolumeFineSlideDown

	// Encoding: volume column c, d
	// Arg: [0, 9]
	VolumeSlideUp
	VolumeSlideDown

	// Encoding: volume column e, f
	// Arg: [0, 9], multiplied by 4
	VolumePortamentoDown
	VolumePortamentoUp

	// Encoding: volume column [128, 192]
	// Arg: panning [0, 64]
	VolumeSetPanning

	// Encoding: volume column g
	// Arg: index into the speed table
	VolumeTonePortamento

	// Encoding: volume column h
	// Arg: vibrato depth
	VolumeVibratoDepth
)

// IsGlobal reports whether the op affects the song position or
// the global state rather than the channel it's placed in.
func (op EffectOp) IsGlobal() bool {
	return op >= EffectSetSpeed && op <= EffectSyncMarker
}

// IsVolumeColumn reports whether the op can only come from the volume column.
func (op EffectOp) IsVolumeColumn() bool {
	return op >= VolumeSetVolume
}

// SlotMask describes which continuous channel parameters an effect drives.
// When both columns of a cell drive the same parameter, the effect column wins.
type SlotMask uint8

const (
	SlotVolumeSlide SlotMask = 1 << iota
	SlotPitchSlide
	SlotVibrato
)

func (op EffectOp) Slots() SlotMask {
	switch op {
	case EffectVolumeSlide, VolumeFineSlideUp, VolumeFineSlideDown, VolumeSlideUp, VolumeSlideDown:
		return SlotVolumeSlide
	case EffectPortamentoDown, EffectPortamentoUp, EffectTonePortamento,
		VolumePortamentoDown, VolumePortamentoUp, VolumeTonePortamento:
		return SlotPitchSlide
	case EffectVibrato, EffectFineVibrato, VolumeVibratoDepth:
		return SlotVibrato
	case EffectVibratoVolumeSlide:
		return SlotVibrato | SlotVolumeSlide
	case EffectTonePortamentoVolumeSlide:
		return SlotPitchSlide | SlotVolumeSlide
	}
	return 0
}

// Conflicts reports whether the volume column effect must be dropped
// in favor of the effect column one.
func Conflicts(volume, effect Effect) bool {
	return volume.Op.Slots()&effect.Op.Slots() != 0
}

var volumeTonePortamentoSpeed = [10]uint8{0, 1, 4, 8, 16, 32, 64, 96, 128, 255}

// VolumeTonePortamentoSpeed maps the volume column g argument
// to the equivalent Gxx parameter.
func VolumeTonePortamentoSpeed(arg uint8) uint8 {
	if int(arg) >= len(volumeTonePortamentoSpeed) {
		return 0
	}
	return volumeTonePortamentoSpeed[arg]
}

func ConvertEffect(cmd, param uint8) Effect {
	e := Effect{Arg: param}

	switch cmd {
	case itfile.CmdA:
		e.Op = EffectSetSpeed
	case itfile.CmdB:
		e.Op = EffectPositionJump
	case itfile.CmdC:
		e.Op = EffectPatternBreak
	case itfile.CmdD:
		e.Op = EffectVolumeSlide
	case itfile.CmdE:
		e.Op = EffectPortamentoDown
	case itfile.CmdF:
		e.Op = EffectPortamentoUp
	case itfile.CmdG:
		e.Op = EffectTonePortamento
	case itfile.CmdH:
		e.Op = EffectVibrato
	case itfile.CmdI:
		e.Op = EffectTremor
	case itfile.CmdJ:
		e.Op = EffectArpeggio
	case itfile.CmdK:
		e.Op = EffectVibratoVolumeSlide
	case itfile.CmdL:
		e.Op = EffectTonePortamentoVolumeSlide
	case itfile.CmdM:
		e.Op = EffectSetChannelVolume
	case itfile.CmdN:
		e.Op = EffectChannelVolumeSlide
	case itfile.CmdO:
		e.Op = EffectSampleOffset
	case itfile.CmdP:
		e.Op = EffectPanningSlide
	case itfile.CmdQ:
		e.Op = EffectRetrigger
	case itfile.CmdR:
		e.Op = EffectTremolo
	case itfile.CmdS:
		return convertSpecialEffect(param)
	case itfile.CmdT:
		e.Op = EffectTempo
	case itfile.CmdU:
		e.Op = EffectFineVibrato
	case itfile.CmdV:
		e.Op = EffectSetGlobalVolume
	case itfile.CmdW:
		e.Op = EffectGlobalVolumeSlide
	case itfile.CmdX:
		e.Op = EffectSetPanning
	case itfile.CmdY:
		e.Op = EffectPanbrello
	case itfile.CmdZ:
		e.Op = EffectSyncMarker
	case itfile.CmdEnvelopePosition:
		e.Op = EffectSetEnvelopePosition
	default:
		e.Arg = 0
	}

	return e
}

func convertSpecialEffect(param uint8) Effect {
	x := param >> 4
	y := param & 0xf

	var e Effect
	e.Arg = y

	switch x {
	case 0x3:
		e.Op = EffectSetVibratoWaveform
	case 0x4:
		e.Op = EffectSetTremoloWaveform
	case 0x5:
		e.Op = EffectSetPanbrelloWaveform
	case 0x6:
		e.Op = EffectPatternDelayTicks
	case 0x7:
		switch {
		case y <= 2:
			e.Op = EffectPastNotes
		case y <= 6:
			e.Op = EffectSetNNA
			e.Arg = y - 3
		}
	case 0x8:
		e.Op = EffectSetPanning
		e.Arg = y * 17
	case 0xA:
		e.Op = EffectHighOffset
	case 0xB:
		e.Op = EffectPatternLoop
	case 0xC:
		e.Op = EffectNoteCut
	case 0xD:
		e.Op = EffectNoteDelay
	case 0xE:
		e.Op = EffectPatternDelayRows
	}

	if e.Op == EffectNone {
		e.Arg = 0
	}
	return e
}

// EffectFromVolumeByte decodes the volume column.
// Out of range values produce an empty effect.
func EffectFromVolumeByte(v uint8) Effect {
	var e Effect

	switch {
	case v <= 64:
		e.Op = VolumeSetVolume
		e.Arg = v
	case v <= 74:
		e.Op = VolumeFineSlideUp
		e.Arg = v - 65
	case v <= 84:
		e.Op = VolumeFineSlideDown
		e.Arg = v - 75
	case v <= 94:
		e.Op = VolumeSlideUp
		e.Arg = v - 85
	case v <= 104:
		e.Op = VolumeSlideDown
		e.Arg = v - 95
	case v <= 114:
		e.Op = VolumePortamentoDown
		e.Arg = v - 105
	case v <= 124:
		e.Op = VolumePortamentoUp
		e.Arg = v - 115
	case v >= 128 && v <= 192:
		e.Op = VolumeSetPanning
		e.Arg = v - 128
	case v >= 193 && v <= 202:
		e.Op = VolumeTonePortamento
		e.Arg = v - 193
	case v >= 203 && v <= 212:
		e.Op = VolumeVibratoDepth
		e.Arg = v - 203
	}

	return e
}

// IsValidVolumeByte reports whether v decodes to a meaningful volume command.
func IsValidVolumeByte(v uint8) bool {
	return !EffectFromVolumeByte(v).IsEmpty()
}
