package hprof

import (
	"io"
	"time"

	herrors "github.com/hprofstream/hprofstream/pkg/errors"
)

// rawRecord is one decoded top-level HPROF record: a tag, the original
// wall-clock delta (unused by the Aggregator but retained for fidelity),
// and its payload. Payload aliases a chunk buffer when the record lay
// entirely within one chunk, or is a freshly allocated, owned slice when it
// spanned a chunk boundary.
type rawRecord struct {
	Tag       RecordTag
	TimeDelta uint32
	Payload   []byte
}

const recordHeaderSize = 1 + 4 + 4 // tag + time delta + length

// readHPROFHeader reads the fixed-format preamble: a NUL-terminated format
// string, a 4-byte id size, and an 8-byte timestamp. Grounded on
// core_reader.Reader.ReadHeader, adapted to the chunk-stream abstraction.
func readHPROFHeader(s *chunkStream) (Header, error) {
	var format []byte
	for {
		b, err := s.readByte()
		if err == io.EOF {
			return Header{}, herrors.Wrap(herrors.CodeHeaderInvalid, "stream ended inside format string", nil)
		}
		if err != nil {
			return Header{}, err
		}
		if b == 0 {
			break
		}
		format = append(format, b)
		if len(format) > 64 {
			return Header{}, herrors.Wrap(herrors.CodeHeaderInvalid, "format string implausibly long", nil)
		}
	}

	idSize, err := s.readUint32()
	if err == io.EOF {
		return Header{}, herrors.Wrap(herrors.CodeHeaderInvalid, "stream ended before id size", nil)
	}
	if err != nil {
		return Header{}, err
	}

	tsMillis, err := s.readUint64()
	if err == io.EOF {
		return Header{}, herrors.Wrap(herrors.CodeHeaderInvalid, "stream ended before timestamp", nil)
	}
	if err != nil {
		return Header{}, err
	}

	if int(idSize) != 8 {
		return Header{}, herrors.Wrap(herrors.CodeUnsupportedFormat, "only 64-bit identifiers are supported", nil)
	}

	return Header{
		Format:    string(format),
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(int64(tsMillis)),
	}, nil
}

// nextTopLevelRecord reads the next top-level record. ok is false, with a
// nil error, on a clean end of stream (the stream ended exactly on a record
// boundary). A non-nil error is always fatal (TruncatedStream if the 9-byte
// record header itself was incomplete, TruncatedRecord if the declared
// payload could not be fully read).
func nextTopLevelRecord(s *chunkStream) (rec rawRecord, ok bool, err error) {
	tagByte, err := s.readByte()
	if err == io.EOF {
		return rawRecord{}, false, nil
	}
	if err != nil {
		return rawRecord{}, false, err
	}

	timeDelta, err := s.readUint32()
	if err == io.EOF {
		return rawRecord{}, false, herrors.Wrap(herrors.CodeTruncatedStream, "record header truncated after tag byte", nil)
	}
	if err != nil {
		return rawRecord{}, false, err
	}

	length, err := s.readUint32()
	if err == io.EOF {
		return rawRecord{}, false, herrors.Wrap(herrors.CodeTruncatedStream, "record header truncated before length", nil)
	}
	if err != nil {
		return rawRecord{}, false, err
	}

	payload, _, err := s.readExact(int(length))
	if err == io.EOF {
		return rawRecord{}, false, herrors.Wrap(herrors.CodeTruncatedRecord, "record payload shorter than declared length", nil)
	}
	if err != nil {
		return rawRecord{}, false, err
	}

	return rawRecord{Tag: RecordTag(tagByte), TimeDelta: timeDelta, Payload: payload}, true, nil
}
