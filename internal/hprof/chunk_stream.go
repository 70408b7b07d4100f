package hprof

import (
	"context"
	"encoding/binary"
	"io"
)

// chunkStream turns a channel of Chunks into a sequential byte stream with
// two read modes: a zero-copy mode when the requested span lies entirely
// within the current chunk (the common case at realistic chunk sizes), and
// a copying mode that assembles a fresh, owned buffer when a span crosses a
// chunk boundary. This is the Record Framer's core responsibility per
// SPEC_FULL.md §4 — stitching chunk boundaries so the parser never has to
// know where one chunk ended and the next began.
//
// Every method returns io.EOF, uninterpreted, when the underlying channel
// is closed and no more bytes are available — even mid-field. It is the
// caller's job (the framer's top-level loop) to decide whether an EOF at a
// given point means a clean end of stream or a truncation.
type chunkStream struct {
	ctx context.Context
	in  <-chan Chunk

	cur    Chunk
	pos    int
	hasCur bool
}

func newChunkStream(ctx context.Context, in <-chan Chunk) *chunkStream {
	return &chunkStream{ctx: ctx, in: in}
}

// advance releases the current chunk (if any) and pulls the next one.
// Returns io.EOF if the channel is closed and empty.
func (s *chunkStream) advance() error {
	if s.hasCur {
		s.cur.Release()
		s.hasCur = false
	}
	select {
	case c, ok := <-s.in:
		if !ok {
			return io.EOF
		}
		s.cur = c
		s.pos = 0
		s.hasCur = true
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// ensureChunk makes sure s.cur has at least one unread byte, advancing
// through empty/exhausted chunks as needed.
func (s *chunkStream) ensureChunk() error {
	for !s.hasCur || s.pos >= len(s.cur.Data) {
		if err := s.advance(); err != nil {
			return err
		}
	}
	return nil
}

// readByte reads a single byte.
func (s *chunkStream) readByte() (byte, error) {
	if err := s.ensureChunk(); err != nil {
		return 0, err
	}
	b := s.cur.Data[s.pos]
	s.pos++
	return b, nil
}

// readExact returns exactly n bytes. zeroCopy reports whether the returned
// slice aliases a pooled chunk buffer (valid only until the next call that
// advances past the owning chunk) versus a freshly allocated, owned slice.
func (s *chunkStream) readExact(n int) (buf []byte, zeroCopy bool, err error) {
	if n == 0 {
		return nil, true, nil
	}
	if err := s.ensureChunk(); err != nil {
		return nil, false, err
	}
	avail := len(s.cur.Data) - s.pos
	if avail >= n {
		b := s.cur.Data[s.pos : s.pos+n]
		s.pos += n
		return b, true, nil
	}

	out := make([]byte, n)
	copied := copy(out, s.cur.Data[s.pos:])
	s.pos = len(s.cur.Data)
	for copied < n {
		if err := s.ensureChunk(); err != nil {
			return nil, false, err
		}
		want := n - copied
		avail := len(s.cur.Data) - s.pos
		take := want
		if avail < take {
			take = avail
		}
		copy(out[copied:], s.cur.Data[s.pos:s.pos+take])
		copied += take
		s.pos += take
	}
	return out, false, nil
}

// skip advances past n bytes without retaining them.
func (s *chunkStream) skip(n int) error {
	for n > 0 {
		if err := s.ensureChunk(); err != nil {
			return err
		}
		avail := len(s.cur.Data) - s.pos
		take := n
		if avail < take {
			take = avail
		}
		s.pos += take
		n -= take
	}
	return nil
}

func (s *chunkStream) readUint32() (uint32, error) {
	b, _, err := s.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (s *chunkStream) readUint64() (uint64, error) {
	b, _, err := s.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// close releases any held chunk without reading further. Safe to call more
// than once.
func (s *chunkStream) close() {
	if s.hasCur {
		s.cur.Release()
		s.hasCur = false
	}
}
