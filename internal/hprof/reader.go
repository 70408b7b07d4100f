package hprof

import (
	"context"
	"io"

	herrors "github.com/hprofstream/hprofstream/pkg/errors"
)

// Chunk is one fixed-size read from the input stream, published by the
// Byte Reader stage. Data is the slice actually filled (n bytes); the
// backing array may be larger (pooled) and must not be retained past
// release.
type Chunk struct {
	Data    []byte
	release func()
}

// Release returns the chunk's backing buffer to the reader's pool. Safe to
// call once the Framer has copied out (or zero-copy-referenced and then
// fully drained) every record sliced from Data.
func (c Chunk) Release() {
	if c.release != nil {
		c.release()
	}
}

// reader is the Byte Reader stage: it owns the input io.Reader and a pool
// of fixed-size buffers, and publishes filled buffers on out until EOF or
// until ctx is canceled. Grounded on the buffered-read discipline of
// core_reader.Reader, generalized from a single bufio.Reader consumed
// synchronously to a chunk producer running on its own goroutine.
type reader struct {
	src  io.Reader
	pool *bufferPool
	size int
}

func newReader(src io.Reader, pool *bufferPool) *reader {
	return &reader{src: src, pool: pool, size: pool.size}
}

// run reads chunks until EOF, sending each on out. It returns nil on a
// clean EOF, ctx.Err() if canceled, or a wrapped IoError on any other read
// failure. out is always closed before returning.
func (r *reader) run(ctx context.Context, out chan<- Chunk) error {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := r.pool.get()
		n, err := io.ReadFull(r.src, buf)
		if n > 0 {
			chunk := Chunk{Data: buf[:n], release: func() { r.pool.put(buf) }}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			r.pool.put(buf)
		}

		switch {
		case err == nil:
			continue
		case err == io.EOF, err == io.ErrUnexpectedEOF:
			return nil
		default:
			return herrors.Wrap(herrors.CodeIoError, "reading input stream", err)
		}
	}
}
