package hprof

import (
	"encoding/binary"

	herrors "github.com/hprofstream/hprofstream/pkg/errors"
)

// cursor is a zero-copy binary decoder over a single record's payload. It
// never allocates or copies; every Bytes/String call returns a sub-slice of
// buf. This mirrors the field-by-field decode style of a buffered stream
// reader but operates entirely in memory, since by the time a cursor exists
// the Record Framer has already assembled a complete, self-contained record.
type cursor struct {
	buf    []byte
	pos    int
	idSize int
}

func newCursor(buf []byte, idSize int) *cursor {
	return &cursor{buf: buf, idSize: idSize}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) eof() bool {
	return c.pos >= len(c.buf)
}

// need returns a TruncatedRecord error if fewer than n bytes remain.
func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return herrors.Wrap(herrors.CodeTruncatedRecord, "record ended mid-field", nil)
	}
	return nil
}

func (c *cursor) byte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) uint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) uint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) uint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

// id reads an identifier, whose width is fixed by the dump's header.
func (c *cursor) id() (uint64, error) {
	if c.idSize == 4 {
		v, err := c.uint32()
		return uint64(v), err
	}
	return c.uint64()
}

// bytes returns a zero-copy sub-slice of the next n bytes.
func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// skip advances the cursor by n bytes without retaining them.
func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// skipValue advances past one value of basic type t.
func (c *cursor) skipValue(t BasicType) error {
	n := basicTypeSize(t, c.idSize)
	if n == 0 {
		return herrors.Wrap(herrors.CodeUnknownSubTag, "unrecognized basic type tag", nil)
	}
	return c.skip(n)
}

// nullTerminatedString reads bytes up to (and consuming) a trailing NUL,
// the form HPROF uses only for the header's format string. readHPROFHeader
// does not use it: it reads the header directly off the chunk stream.
func (c *cursor) nullTerminatedString() (string, error) {
	start := c.pos
	for {
		if c.eof() {
			return "", herrors.Wrap(herrors.CodeTruncatedRecord, "unterminated format string", nil)
		}
		if c.buf[c.pos] == 0 {
			s := string(c.buf[start:c.pos])
			c.pos++
			return s, nil
		}
		c.pos++
	}
}
