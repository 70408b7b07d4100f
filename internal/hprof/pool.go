package hprof

import "github.com/hprofstream/hprofstream/pkg/collections"

// bufferPool hands out fixed-capacity byte buffers to the Byte Reader stage
// and takes them back once every consumer downstream (the Framer's
// carry-over buffer, and the chunk's zero-copy record slices) has released
// its references. Grounded on pkg/collections.SlicePool, generalized from a
// single package-level pool to one instance per Pipeline so that
// Config.ChunkSize controls the pooled capacity.
type bufferPool struct {
	pool *collections.SlicePool[byte]
	size int
}

func newBufferPool(chunkSize int) *bufferPool {
	return &bufferPool{
		pool: collections.NewSlicePool[byte](chunkSize),
		size: chunkSize,
	}
}

// get returns a buffer of exactly p.size bytes, reused from the pool when
// possible.
func (p *bufferPool) get() []byte {
	s := p.pool.Get()
	if cap(*s) < p.size {
		*s = make([]byte, p.size)
		return *s
	}
	*s = (*s)[:p.size]
	return *s
}

// put returns buf to the pool. buf must not be referenced again by the
// caller afterward.
func (p *bufferPool) put(buf []byte) {
	p.pool.Put(&buf)
}
