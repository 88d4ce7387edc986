package itplay

import (
	"github.com/quasilyte/itplay/itfile"
)

// ChannelInfo is a logical channel state for the display purposes.
type ChannelInfo struct {
	// Instrument and Sample are 1-based; 0 means "none".
	Instrument int
	Sample     int

	Note     uint8
	NoteName string
	State    NoteState

	// Volume is in [0, 64], after tremolo and tremor.
	Volume int

	ChannelVolume int

	// Pan is in [0, 64], 32 is the center.
	Pan int

	// Effect is an effect column glyph of the current row, like "D0F".
	Effect string

	// Triggered reports whether a note was started on the current row.
	Triggered bool

	Muted bool
}

// GlobalInfo is a song-wide playback state.
type GlobalInfo struct {
	Speed        int
	Tempo        int
	GlobalVolume int

	// GlobalVolumeSlide is 1 when the global volume is sliding up,
	// -1 when it's sliding down and 0 otherwise.
	GlobalVolumeSlide int

	Looped bool
	Ended  bool

	ActiveVoices int
}

// streamSnapshot is a complete tick state published by the render goroutine.
type streamSnapshot struct {
	order int
	row   int
	tick  int

	global   GlobalInfo
	channels []ChannelInfo
	diag     Diagnostics
}

// publishSnapshot copies the state after the tick simulation.
// ev is nil when the stream was reset.
func (s *Stream) publishSnapshot(ev *TickEvent) {
	seq := &s.sim.seq

	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	snap := &s.snapshot
	snap.order = seq.order
	snap.row = seq.row
	snap.tick = 0
	if ev != nil && !ev.Ended {
		snap.order = ev.Order
		snap.row = ev.Row
		snap.tick = ev.Tick
	}
	snap.global = GlobalInfo{
		Speed:             seq.speed,
		Tempo:             seq.tempo,
		GlobalVolume:      seq.globalVolume,
		GlobalVolumeSlide: seq.globalVolumeSlideDirection(),
		Looped:            seq.looped,
		Ended:             ev != nil && ev.Ended,
		ActiveVoices:      s.pool.ActiveVoices(),
	}
	snap.diag = s.sim.diag

	for i := range s.sim.channels {
		ch := &s.sim.channels[i]
		out := ch.output()
		info := ChannelInfo{
			Instrument:    ch.instIndex,
			Sample:        ch.sampleIndex,
			Note:          ch.note,
			State:         ch.state,
			Volume:        out.Volume,
			ChannelVolume: out.ChannelVolume,
			Pan:           out.Pan,
			Effect:        "...",
			Triggered:     s.rowTriggered[i],
			Muted:         ch.muted,
		}
		if ch.state != NoteSilent {
			info.NoteName = itfile.NoteName(ch.note)
		}
		if ch.cell != nil && ev != nil {
			info.Effect = ch.cell.raw.EffectString()
		}
		snap.channels[i] = info
	}
}

// GetCursor returns the position of the last rendered tick.
func (s *Stream) GetCursor() (order, row, tick int) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.snapshot.order, s.snapshot.row, s.snapshot.tick
}

// GetChannelInfo returns the logical channel state as of the last rendered tick.
func (s *Stream) GetChannelInfo(ch int) (ChannelInfo, error) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	if ch < 0 || ch >= len(s.snapshot.channels) {
		return ChannelInfo{}, programmerErrorf("channel %d is out of range [0, %d)", ch, len(s.snapshot.channels))
	}
	return s.snapshot.channels[ch], nil
}

// GetGlobalInfo returns the song-wide state as of the last rendered tick.
func (s *Stream) GetGlobalInfo() GlobalInfo {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.snapshot.global
}

// Diagnostics returns the absorbed fault counters.
func (s *Stream) Diagnostics() Diagnostics {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.snapshot.diag
}

// SetChannelMute mutes or unmutes the logical channel.
// The change is applied at the next tick boundary.
func (s *Stream) SetChannelMute(ch int, muted bool) error {
	if s.mod == nil {
		return programmerErrorf("stream has no module")
	}
	if ch < 0 || ch >= s.mod.numChannels {
		return programmerErrorf("channel %d is out of range [0, %d)", ch, s.mod.numChannels)
	}
	s.pushControl(streamControl{kind: controlMute, ch: ch, flag: muted})
	return nil
}

// SetPosition forces a jump to the specified order and row.
// The jump happens at the next tick boundary.
func (s *Stream) SetPosition(order, row int) error {
	if s.mod == nil {
		return programmerErrorf("stream has no module")
	}
	if err := s.mod.validatePosition(order, row); err != nil {
		return err
	}
	s.pushControl(streamControl{kind: controlPosition, order: order, row: row})
	return nil
}

// Predict runs the timing prediction from the current row using
// the current speed and tempo.
// The timestamps are relative to the current row start.
//
// It's safe to call Predict during the playback.
func (s *Stream) Predict(targets []SyncTarget, maxTicks int) ([]Timestamp, error) {
	if s.mod == nil {
		return nil, programmerErrorf("stream has no module")
	}
	s.snapshotMu.Lock()
	order := s.snapshot.order
	row := s.snapshot.row
	global := s.snapshot.global
	s.snapshotMu.Unlock()

	config := s.simConfig
	config.Speed = global.Speed
	config.Tempo = global.Tempo
	sim := newSimulation(s.mod, nil, config)
	return predict(sim, order, row, targets, maxTicks)
}
