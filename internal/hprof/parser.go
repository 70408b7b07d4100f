package hprof

import (
	"fmt"

	herrors "github.com/hprofstream/hprofstream/pkg/errors"
)

// emitFunc delivers one decoded Event downstream. Implementations may
// block (it is typically a channel send guarded by context cancellation).
type emitFunc func(Event) error

// decodeRecord decodes one top-level record and emits zero or more Events.
// An UnknownTopTag error is the one non-fatal outcome: the record's bytes
// have already been fully consumed by the framer (readExact(length)), so
// "skip by length" has already happened by construction; decodeRecord
// simply declines to interpret the payload.
func decodeRecord(rec rawRecord, idSize int, emit emitFunc) error {
	switch rec.Tag {
	case TagString:
		return decodeStringRecord(rec.Payload, idSize, emit)
	case TagLoadClass:
		return decodeLoadClassRecord(rec.Payload, idSize, emit)
	case TagHeapDump, TagHeapDumpSegment:
		return decodeHeapDumpRecord(rec.Payload, idSize, emit)
	case TagStackFrame:
		return decodeStackFrameRecord(rec.Payload, idSize, emit)
	case TagStackTrace:
		return decodeStackTraceRecord(rec.Payload, idSize, emit)
	case TagHeapSummary:
		return decodeHeapSummaryRecord(rec.Payload, emit)
	case TagUnloadClass, TagStartThread, TagEndThread, TagAllocSites,
		TagCPUSamples, TagControlSettings, TagHeapDumpEnd:
		// Recognized but not meaningful to this analyzer's result; the
		// bytes are already consumed, there is nothing further to do.
		return nil
	default:
		return herrors.Wrap(herrors.CodeUnknownTopTag,
			fmt.Sprintf("unrecognized top-level record tag 0x%02x", uint8(rec.Tag)), nil)
	}
}

func decodeStringRecord(payload []byte, idSize int, emit emitFunc) error {
	c := newCursor(payload, idSize)
	id, err := c.id()
	if err != nil {
		return err
	}
	value, err := c.bytes(c.remaining())
	if err != nil {
		return err
	}
	return emit(StringEvent{ID: id, Value: string(value)})
}

func decodeLoadClassRecord(payload []byte, idSize int, emit emitFunc) error {
	c := newCursor(payload, idSize)
	classSerial, err := c.uint32()
	if err != nil {
		return err
	}
	classID, err := c.id()
	if err != nil {
		return err
	}
	stackTraceSerial, err := c.uint32()
	if err != nil {
		return err
	}
	nameID, err := c.id()
	if err != nil {
		return err
	}
	return emit(LoadClassEvent{
		ClassSerial:  classSerial,
		ClassID:      classID,
		ClassNameID:  nameID,
		StackTraceID: stackTraceSerial,
	})
}

func decodeHeapSummaryRecord(payload []byte, emit emitFunc) error {
	c := newCursor(payload, 8)
	liveBytes, err := c.uint32()
	if err != nil {
		return err
	}
	liveInstances, err := c.uint32()
	if err != nil {
		return err
	}
	return emit(HeapSummaryEvent{TotalLiveBytes: int64(liveBytes), TotalLiveObjects: int64(liveInstances)})
}

func decodeStackFrameRecord(payload []byte, idSize int, emit emitFunc) error {
	c := newCursor(payload, idSize)
	frameID, err := c.id()
	if err != nil {
		return err
	}
	methodNameID, err := c.id()
	if err != nil {
		return err
	}
	if _, err := c.id(); err != nil { // method signature id, unused
		return err
	}
	sourceFileID, err := c.id()
	if err != nil {
		return err
	}
	classSerial, err := c.uint32()
	if err != nil {
		return err
	}
	line, err := c.uint32()
	if err != nil {
		return err
	}
	return emit(StackFrameEvent{
		FrameID:      frameID,
		MethodNameID: methodNameID,
		SourceFileID: sourceFileID,
		ClassSerial:  classSerial,
		Line:         int32(line),
	})
}

func decodeStackTraceRecord(payload []byte, idSize int, emit emitFunc) error {
	c := newCursor(payload, idSize)
	traceSerial, err := c.uint32()
	if err != nil {
		return err
	}
	threadSerial, err := c.uint32()
	if err != nil {
		return err
	}
	numFrames, err := c.uint32()
	if err != nil {
		return err
	}
	frames := make([]uint64, 0, numFrames)
	for i := uint32(0); i < numFrames; i++ {
		id, err := c.id()
		if err != nil {
			return err
		}
		frames = append(frames, id)
	}
	return emit(StackTraceEvent{StackTraceSerial: traceSerial, ThreadSerial: threadSerial, FrameIDs: frames})
}

// decodeHeapDumpRecord walks the sub-record stream nested inside a
// HEAP_DUMP / HEAP_DUMP_SEGMENT record. Grounded on
// parser.parseHeapDumpSubRecord, generalized from a state-machine over a
// buffered io.Reader to a cursor over an already-complete, zero-copy
// payload slice.
func decodeHeapDumpRecord(payload []byte, idSize int, emit emitFunc) error {
	c := newCursor(payload, idSize)
	for !c.eof() {
		subtagByte, err := c.byte()
		if err != nil {
			return err
		}
		if err := decodeHeapDumpSubRecord(c, HeapDumpTag(subtagByte), emit); err != nil {
			return err
		}
	}
	return nil
}

func decodeHeapDumpSubRecord(c *cursor, tag HeapDumpTag, emit emitFunc) error {
	switch tag {
	case 0x00: // padding byte emitted by some dump writers between segments
		return nil

	case HeapTagRootUnknown, HeapTagRootStickyClass, HeapTagRootMonitorUsed,
		HeapTagRootInternedString, HeapTagRootFinalizing, HeapTagRootDebugger,
		HeapTagRootReferenceClean, HeapTagRootVMInternal, HeapTagRootUnreachable:
		objectID, err := c.id()
		if err != nil {
			return err
		}
		return emit(GCRootEvent{ObjectID: objectID, RootKind: tag})

	case HeapTagRootJNIGlobal:
		objectID, err := c.id()
		if err != nil {
			return err
		}
		if _, err := c.id(); err != nil { // JNI global ref id
			return err
		}
		return emit(GCRootEvent{ObjectID: objectID, RootKind: tag})

	case HeapTagRootJNILocal, HeapTagRootJavaFrame:
		objectID, err := c.id()
		if err != nil {
			return err
		}
		if err := c.skip(8); err != nil { // thread serial + frame number
			return err
		}
		return emit(GCRootEvent{ObjectID: objectID, RootKind: tag})

	case HeapTagRootNativeStack, HeapTagRootThreadBlock:
		objectID, err := c.id()
		if err != nil {
			return err
		}
		if err := c.skip(4); err != nil { // thread serial
			return err
		}
		return emit(GCRootEvent{ObjectID: objectID, RootKind: tag})

	case HeapTagRootThreadObject:
		objectID, err := c.id()
		if err != nil {
			return err
		}
		if err := c.skip(8); err != nil { // thread serial + stack trace serial
			return err
		}
		return emit(GCRootEvent{ObjectID: objectID, RootKind: tag})

	case HeapTagRootJNIMonitor:
		objectID, err := c.id()
		if err != nil {
			return err
		}
		if err := c.skip(8); err != nil { // thread serial + stack depth
			return err
		}
		return emit(GCRootEvent{ObjectID: objectID, RootKind: tag})

	case HeapTagHeapDumpInfo:
		if _, err := c.uint32(); err != nil { // heap type
			return err
		}
		if _, err := c.id(); err != nil { // heap name string id
			return err
		}
		return nil

	case HeapTagClassDump:
		return decodeClassDump(c, emit)

	case HeapTagInstanceDump:
		return decodeInstanceDump(c, emit)

	case HeapTagObjectArrayDump:
		return decodeObjectArrayDump(c, emit)

	case HeapTagPrimitiveArrayDump:
		return decodePrimitiveArrayDump(c, emit)

	default:
		return herrors.Wrap(herrors.CodeUnknownSubTag,
			fmt.Sprintf("unrecognized heap dump sub-record tag 0x%02x", uint8(tag)), nil)
	}
}

func decodeClassDump(c *cursor, emit emitFunc) error {
	classID, err := c.id()
	if err != nil {
		return err
	}
	if _, err := c.uint32(); err != nil { // stack trace serial
		return err
	}
	superClassID, err := c.id()
	if err != nil {
		return err
	}
	// class loader, signers, protection domain, reserved1, reserved2
	if err := c.skip(c.idSize * 5); err != nil {
		return err
	}
	instanceSize, err := c.uint32()
	if err != nil {
		return err
	}

	cpSize, err := c.uint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(cpSize); i++ {
		if _, err := c.uint16(); err != nil { // constant pool index
			return err
		}
		typeByte, err := c.byte()
		if err != nil {
			return err
		}
		if err := c.skipValue(BasicType(typeByte)); err != nil {
			return err
		}
	}

	staticFieldsCount, err := c.uint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(staticFieldsCount); i++ {
		if _, err := c.id(); err != nil { // field name id
			return err
		}
		typeByte, err := c.byte()
		if err != nil {
			return err
		}
		if err := c.skipValue(BasicType(typeByte)); err != nil {
			return err
		}
	}

	instanceFieldsCount, err := c.uint16()
	if err != nil {
		return err
	}
	fields := make([]FieldDescriptor, 0, instanceFieldsCount)
	for i := 0; i < int(instanceFieldsCount); i++ {
		nameID, err := c.id()
		if err != nil {
			return err
		}
		typeByte, err := c.byte()
		if err != nil {
			return err
		}
		fields = append(fields, FieldDescriptor{NameID: nameID, Type: BasicType(typeByte)})
	}

	return emit(ClassDumpEvent{
		ClassID:        classID,
		SuperClassID:   superClassID,
		InstanceSize:   int(instanceSize),
		InstanceFields: fields,
	})
}

func decodeInstanceDump(c *cursor, emit emitFunc) error {
	objectID, err := c.id()
	if err != nil {
		return err
	}
	if _, err := c.uint32(); err != nil { // stack trace serial
		return err
	}
	classID, err := c.id()
	if err != nil {
		return err
	}
	dataSize, err := c.uint32()
	if err != nil {
		return err
	}
	if err := c.skip(int(dataSize)); err != nil {
		return err
	}

	return emit(InstanceDumpEvent{
		ObjectID:      objectID,
		ClassID:       classID,
		InstanceBytes: int64(dataSize),
	})
}

func decodeObjectArrayDump(c *cursor, emit emitFunc) error {
	arrayObjectID, err := c.id()
	if err != nil {
		return err
	}
	if _, err := c.uint32(); err != nil { // stack trace serial
		return err
	}
	numElements, err := c.uint32()
	if err != nil {
		return err
	}
	classID, err := c.id()
	if err != nil {
		return err
	}
	elemBytes := int(numElements) * c.idSize
	if err := c.skip(elemBytes); err != nil {
		return err
	}

	totalBytes := int64(c.idSize) + 4 + 4 + int64(c.idSize) + int64(elemBytes)
	return emit(ObjectArrayEvent{
		ArrayObjectID: arrayObjectID,
		ClassID:       classID,
		ElementCount:  int(numElements),
		TotalBytes:    totalBytes,
	})
}

func decodePrimitiveArrayDump(c *cursor, emit emitFunc) error {
	arrayObjectID, err := c.id()
	if err != nil {
		return err
	}
	if _, err := c.uint32(); err != nil { // stack trace serial
		return err
	}
	numElements, err := c.uint32()
	if err != nil {
		return err
	}
	elemTypeByte, err := c.byte()
	if err != nil {
		return err
	}
	elemType := BasicType(elemTypeByte)
	elemSize := basicTypeSize(elemType, c.idSize)
	dataBytes := int(numElements) * elemSize
	if err := c.skip(dataBytes); err != nil {
		return err
	}

	totalBytes := int64(c.idSize) + 4 + 4 + 1 + int64(dataBytes)
	return emit(PrimitiveArrayEvent{
		ArrayObjectID: arrayObjectID,
		ElementType:   elemType,
		ElementCount:  int(numElements),
		TotalBytes:    totalBytes,
	})
}
