package itplay

import (
	"github.com/quasilyte/itplay/itfile"
)

// SyncTargetKind tells what kind of moment the SyncTarget describes.
type SyncTargetKind uint8

const (
	// TargetPosition is a specific (order, row, tick) position.
	TargetPosition SyncTargetKind = iota

	// TargetLoopWrap is the first row that was reached by
	// wrapping the song or by jumping backwards.
	TargetLoopWrap

	// TargetSyncMarker is the first row that contains a Zxx marker.
	TargetSyncMarker
)

// SyncTarget is a Predict query.
// Use PositionTarget, LoopWrapTarget and SyncMarkerTarget to create one.
type SyncTarget struct {
	Kind SyncTargetKind

	Order int
	Row   int
	Tick  int

	Marker int
}

func PositionTarget(order, row, tick int) SyncTarget {
	return SyncTarget{Kind: TargetPosition, Order: order, Row: row, Tick: tick}
}

func LoopWrapTarget() SyncTarget {
	return SyncTarget{Kind: TargetLoopWrap}
}

func SyncMarkerTarget(marker int) SyncTarget {
	return SyncTarget{Kind: TargetSyncMarker, Marker: marker}
}

// Timestamp is a predicted target time.
type Timestamp struct {
	// Samples is a number of output frames since the prediction start.
	Samples int64

	// Found is false if the target was not reached.
	Found bool
}

// Seconds converts the timestamp into seconds for the given sample rate.
func (ts Timestamp) Seconds(sampleRate int) float64 {
	return float64(ts.Samples) / float64(sampleRate)
}

// Predict runs a silent simulation of the module from the specified position
// and reports when every target is reached.
//
// The simulation stops when all targets are resolved, after maxTicks ticks
// or on the first loop wrap, whichever happens first.
//
// Predict has no side effects, it can be called concurrently with the playback
// of the same module.
func Predict(m *itfile.Module, config SimulationConfig, startOrder, startRow int, targets []SyncTarget, maxTicks int) ([]Timestamp, error) {
	sim, err := NewSimulation(m, nil, config)
	if err != nil {
		return nil, err
	}
	return predict(sim, startOrder, startRow, targets, maxTicks)
}

func predict(sim *Simulation, startOrder, startRow int, targets []SyncTarget, maxTicks int) ([]Timestamp, error) {
	if maxTicks < 0 {
		return nil, programmerErrorf("negative maxTicks: %d", maxTicks)
	}
	// The prediction has to observe the wrap even if the song is not looped.
	sim.SetLoopEnabled(true)
	if err := sim.SetPosition(startOrder, startRow); err != nil {
		return nil, err
	}

	result := make([]Timestamp, len(targets))
	unresolved := len(targets)

	for i := 0; i < maxTicks && unresolved > 0; i++ {
		ev := sim.Advance()
		if ev.Ended {
			break
		}
		for j, target := range targets {
			if result[j].Found || !targetReached(target, &ev) {
				continue
			}
			result[j] = Timestamp{Samples: ev.SamplePos, Found: true}
			unresolved--
		}
		if ev.Looped {
			break
		}
	}

	return result, nil
}

func targetReached(target SyncTarget, ev *TickEvent) bool {
	switch target.Kind {
	case TargetPosition:
		// A repeated row has the same position, but only the first pass counts;
		// the Found flag guards against the second match.
		return ev.Order == target.Order && ev.Row == target.Row && ev.Tick == target.Tick
	case TargetLoopWrap:
		return ev.Looped
	case TargetSyncMarker:
		for _, marker := range ev.SyncMarkers {
			if marker == target.Marker {
				return true
			}
		}
	}
	return false
}
