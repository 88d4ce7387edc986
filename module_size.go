package itplay

import (
	"unsafe"

	"github.com/quasilyte/itplay/itfile"
)

func moduleSize(m *module) uint {
	memoryUsage := int(unsafe.Sizeof(module{}))
	for _, p := range m.patterns {
		memoryUsage += int(unsafe.Sizeof(pattern{}))
		memoryUsage += len(p.cells) * int(unsafe.Sizeof(patternCell{}))
	}
	for _, inst := range m.instruments {
		memoryUsage += int(unsafe.Sizeof(inst))
		for _, env := range [...]*itfile.Envelope{&inst.VolumeEnvelope, &inst.PanningEnvelope, &inst.PitchEnvelope} {
			memoryUsage += len(env.Nodes) * int(unsafe.Sizeof(itfile.EnvelopeNode{}))
		}
	}
	memoryUsage += len(m.samples) * int(unsafe.Sizeof(itfile.Sample{}))
	memoryUsage += len(m.orders)
	memoryUsage += (len(m.channelPanning) + len(m.channelVolume)) * int(unsafe.Sizeof(int(0)))

	return uint(memoryUsage)
}
