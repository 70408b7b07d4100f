package hprof

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendChunks(ch chan<- Chunk, parts ...[]byte) {
	for _, p := range parts {
		ch <- Chunk{Data: p}
	}
	close(ch)
}

func TestChunkStream_ReadExact_WithinOneChunk(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{1, 2, 3, 4, 5})

	s := newChunkStream(context.Background(), in)
	buf, zeroCopy, err := s.readExact(3)
	require.NoError(t, err)
	assert.True(t, zeroCopy)
	assert.Equal(t, []byte{1, 2, 3}, buf)
}

func TestChunkStream_ReadExact_SpansChunkBoundary(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{1, 2}, []byte{3, 4, 5})

	s := newChunkStream(context.Background(), in)
	buf, zeroCopy, err := s.readExact(4)
	require.NoError(t, err)
	assert.False(t, zeroCopy)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestChunkStream_ReadExact_SpansMultipleChunks(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{1}, []byte{2}, []byte{3}, []byte{4})

	s := newChunkStream(context.Background(), in)
	buf, zeroCopy, err := s.readExact(4)
	require.NoError(t, err)
	assert.False(t, zeroCopy)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestChunkStream_EOFAtBoundary(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{1, 2, 3})

	s := newChunkStream(context.Background(), in)
	_, _, err := s.readExact(3)
	require.NoError(t, err)

	_, err = s.readByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunkStream_EOFMidField(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{1, 2})

	s := newChunkStream(context.Background(), in)
	_, _, err := s.readExact(5)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunkStream_Skip(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{1, 2, 3}, []byte{4, 5, 6})

	s := newChunkStream(context.Background(), in)
	require.NoError(t, s.skip(4))
	b, err := s.readByte()
	require.NoError(t, err)
	assert.Equal(t, byte(5), b)
}

func TestChunkStream_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan Chunk)
	s := newChunkStream(ctx, in)
	_, err := s.readByte()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunkStream_ReadUint32AcrossBoundary(t *testing.T) {
	in := make(chan Chunk, 4)
	go sendChunks(in, []byte{0x00, 0x00}, []byte{0x01, 0x00})

	s := newChunkStream(context.Background(), in)
	v, err := s.readUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00000100), v)
}
