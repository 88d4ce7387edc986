package itfile

// objectPool hands out sub-slices of larger chunks, so decoding
// a pattern doesn't allocate a slice per row.
type objectPool[T any] struct {
	chunk     []T
	chunkSize int
}

func initObjectPool[T any](p *objectPool[T], chunkSize int) {
	p.chunk = nil
	p.chunkSize = chunkSize
}

func (p *objectPool[T]) MakeSlice(n int) []T {
	if n > p.chunkSize {
		return make([]T, n)
	}
	if len(p.chunk) < n {
		p.chunk = make([]T, p.chunkSize)
	}
	// The capacity is capped to avoid appends overwriting the neighbours.
	s := p.chunk[:n:n]
	p.chunk = p.chunk[n:]
	return s
}
