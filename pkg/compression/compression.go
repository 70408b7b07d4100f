// Package compression provides transparent decompression for streamed input.
package compression

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type identifies a detected compression format.
type Type uint8

const (
	TypeNone Type = iota
	TypeGzip
	TypeZstd
)

func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

// sniffLen is the number of leading bytes needed to recognize any magic
// number this package knows about.
const sniffLen = 4

// DetectType inspects the leading bytes of header for a known compression
// magic number. Grounded on compression.DetectType, generalized from
// operating on a fully-buffered byte slice to a small peeked prefix so the
// caller never has to read the whole stream to find out.
func DetectType(header []byte) Type {
	if len(header) >= 4 && header[0] == 0x28 && header[1] == 0xb5 && header[2] == 0x2f && header[3] == 0xfd {
		return TypeZstd
	}
	if len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b {
		return TypeGzip
	}
	return TypeNone
}

// zstdReader adapts *zstd.Decoder (which exposes Close() with no return
// value) to io.ReadCloser.
type zstdReader struct {
	*zstd.Decoder
}

func (z zstdReader) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r, transparently decompressing gzip or zstd input
// detected from its leading bytes, or passing plain input through
// unchanged. This is compression.AutoDecompress's streaming counterpart: it
// never requires the caller to hold the whole input in memory the way the
// byte-slice original does, which matters for multi-gigabyte heap dumps.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	header, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("compression: peeking input header: %w", err)
	}

	switch DetectType(header) {
	case TypeZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("compression: opening zstd stream: %w", err)
		}
		return zstdReader{dec}, nil
	case TypeGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("compression: opening gzip stream: %w", err)
		}
		return gz, nil
	default:
		return io.NopCloser(br), nil
	}
}
