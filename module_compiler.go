package itplay

import (
	"log/slog"

	"github.com/quasilyte/itplay/internal/itdb"
	"github.com/quasilyte/itplay/itfile"
)

type moduleCompiler struct {
	result module

	logger *slog.Logger
}

func compileModule(m *itfile.Module, logger *slog.Logger) (*module, error) {
	c := &moduleCompiler{logger: logger}
	if err := c.compile(m); err != nil {
		return nil, err
	}
	return &c.result, nil
}

func (c *moduleCompiler) compile(m *itfile.Module) error {
	if m.NumChannels <= 0 {
		return invalidModuleErrorf("module has no channels")
	}
	if len(m.Orders) == 0 {
		return invalidModuleErrorf("module has an empty order list")
	}
	if len(m.Patterns) == 0 {
		return invalidModuleErrorf("module has no patterns")
	}

	c.result = module{
		name:         m.Name,
		numChannels:  m.NumChannels,
		orders:       m.Orders,
		restartOrder: m.RestartOrder,
		speed:        m.InitialSpeed,
		tempo:        m.InitialTempo,
		globalVolume: m.GlobalVolume,
	}
	if c.result.speed <= 0 {
		c.result.speed = 6
	}
	c.result.speed = clampMax(c.result.speed, 255)
	if c.result.tempo <= 0 {
		c.result.tempo = 125
	}
	c.result.tempo = clamp(c.result.tempo, minTempo, maxTempo)
	if c.result.globalVolume <= 0 {
		c.result.globalVolume = 128
	}
	c.result.globalVolume = clampMax(c.result.globalVolume, 128)
	if c.result.restartOrder < 0 || c.result.restartOrder >= len(m.Orders) {
		c.result.restartOrder = 0
	}

	playable := false
	for _, o := range m.Orders {
		if o == itfile.OrderEnd {
			break
		}
		if int(o) < len(m.Patterns) {
			playable = true
			break
		}
	}
	if !playable {
		return invalidModuleErrorf("module has no playable orders")
	}

	c.compileChannels(m)
	c.compileInstruments(m)
	c.compileSamples(m)
	c.compilePatterns(m)

	return nil
}

func (c *moduleCompiler) compileChannels(m *itfile.Module) {
	c.result.channelPanning = make([]int, m.NumChannels)
	c.result.channelVolume = make([]int, m.NumChannels)
	for i := 0; i < m.NumChannels; i++ {
		pan := 32
		if i < len(m.ChannelPanning) {
			pan = clampMax(int(m.ChannelPanning[i]), 64)
		}
		vol := 64
		if i < len(m.ChannelVolume) {
			vol = clampMax(int(m.ChannelVolume[i]), 64)
		}
		c.result.channelPanning[i] = pan
		c.result.channelVolume[i] = vol
	}
}

func (c *moduleCompiler) compileInstruments(m *itfile.Module) {
	// Instruments are copied, so the playback is not affected by
	// the caller modifying the source module.
	c.result.instruments = make([]itfile.Instrument, len(m.Instruments))
	for i := range m.Instruments {
		inst := m.Instruments[i]
		if inst.GlobalVolume <= 0 {
			inst.GlobalVolume = 128
		}
		inst.GlobalVolume = clampMax(inst.GlobalVolume, 128)
		inst.FadeOut = clamp(inst.FadeOut, 0, 1024)
		inst.DefaultPan = clampMax(inst.DefaultPan, 64)
		inst.RandomVolume = clampMax(inst.RandomVolume, 100)
		inst.RandomPan = clampMax(inst.RandomPan, 64)
		for _, env := range []*itfile.Envelope{&inst.VolumeEnvelope, &inst.PanningEnvelope, &inst.PitchEnvelope} {
			c.compileEnvelope(env)
		}
		c.result.instruments[i] = inst
	}
}

func (c *moduleCompiler) compileEnvelope(env *itfile.Envelope) {
	if len(env.Nodes) == 0 {
		env.Flags &^= itfile.EnvelopeOn
		return
	}
	last := uint8(len(env.Nodes) - 1)
	env.Nodes = append([]itfile.EnvelopeNode(nil), env.Nodes...)
	// Node ticks must not decrease.
	for i := 1; i < len(env.Nodes); i++ {
		if env.Nodes[i].Tick < env.Nodes[i-1].Tick {
			env.Nodes[i].Tick = env.Nodes[i-1].Tick
		}
	}
	env.LoopStart = clampMax(env.LoopStart, last)
	env.LoopEnd = clamp(env.LoopEnd, env.LoopStart, last)
	env.SustainStart = clampMax(env.SustainStart, last)
	env.SustainEnd = clamp(env.SustainEnd, env.SustainStart, last)
}

func (c *moduleCompiler) compileSamples(m *itfile.Module) {
	c.result.samples = make([]itfile.Sample, len(m.Samples))
	for i := range m.Samples {
		s := m.Samples[i]
		if s.Length < 0 {
			s.Length = 0
		}
		if s.C5Speed <= 0 {
			s.C5Speed = 8363
		}
		if s.GlobalVolume == 0 {
			s.GlobalVolume = 64
		}
		s.GlobalVolume = clampMax(s.GlobalVolume, 64)
		s.DefaultVolume = clampMax(s.DefaultVolume, 64)
		s.DefaultPan = clampMax(s.DefaultPan, 64)

		loopEnd := clampMax(s.LoopEnd, s.Length)
		loopStart := clamp(s.LoopStart, 0, loopEnd)
		if loopStart >= loopEnd {
			s.Loop = itfile.LoopNone
		}
		s.LoopStart = loopStart
		s.LoopEnd = loopEnd

		c.result.samples[i] = s
	}
}

func (c *moduleCompiler) compilePatterns(m *itfile.Module) {
	numChannels := m.NumChannels
	c.result.patterns = make([]pattern, len(m.Patterns))

	for i := range m.Patterns {
		rawPat := &m.Patterns[i]
		pat := &c.result.patterns[i]

		pat.numRows = len(rawPat.Rows)
		if pat.numRows == 0 {
			pat.numRows = itfile.DefaultNumRows
		}
		pat.cells = make([]patternCell, pat.numRows*numChannels)

		for rowIndex, row := range rawPat.Rows {
			cells := pat.row(rowIndex, numChannels)
			for _, rawCell := range row.Cells {
				if int(rawCell.Channel) >= numChannels {
					c.result.corruptCells++
					c.logger.Debug("cell channel out of range",
						slog.Int("pattern", i),
						slog.Int("row", rowIndex),
						slog.Int("channel", int(rawCell.Channel)))
					continue
				}
				dst := &cells[rawCell.Channel]
				if !dst.IsEmpty() {
					// Only the first cell of the channel is used.
					c.result.corruptCells++
					continue
				}
				*dst = c.compileCell(rawCell)
			}
		}
	}
}

func (c *moduleCompiler) compileCell(raw itfile.Cell) patternCell {
	cell := patternCell{raw: raw}
	if raw.Mask.Has(itfile.CellVolume) {
		cell.vol = itdb.EffectFromVolumeByte(raw.Volume)
		if cell.vol.IsEmpty() {
			c.result.disabledVolumeCommands++
		}
	}
	if raw.Mask.Has(itfile.CellEffect) {
		cell.fx = itdb.ConvertEffect(raw.Command, raw.Param)
	}
	return cell
}
