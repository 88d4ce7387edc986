package itfile

// SampleStore resolves Sample.Handle into signed 16-bit PCM frames.
//
// The player never copies the sample data; the store must outlive the
// streams that use it.
type SampleStore interface {
	SampleData(handle int) []int16
}

// SampleBank is a simple in-memory SampleStore.
// A handle is an index into the bank.
type SampleBank [][]int16

// Add appends the PCM data to the bank and returns its handle.
func (b *SampleBank) Add(data []int16) int {
	*b = append(*b, data)
	return len(*b) - 1
}

func (b SampleBank) SampleData(handle int) []int16 {
	if handle < 0 || handle >= len(b) {
		return nil
	}
	return b[handle]
}
