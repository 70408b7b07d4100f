// Package hprof implements a streaming, single-pass parser and aggregator for
// JAVA PROFILE 1.0.1/1.0.2 (HPROF) binary heap dump files.
package hprof

import "time"

// RecordTag identifies a top-level HPROF record.
type RecordTag uint8

const (
	TagString          RecordTag = 0x01
	TagLoadClass       RecordTag = 0x02
	TagUnloadClass     RecordTag = 0x03
	TagStackFrame      RecordTag = 0x04
	TagStackTrace      RecordTag = 0x05
	TagAllocSites      RecordTag = 0x06
	TagHeapSummary     RecordTag = 0x07
	TagStartThread     RecordTag = 0x0A
	TagEndThread       RecordTag = 0x0B
	TagHeapDump        RecordTag = 0x0C
	TagCPUSamples      RecordTag = 0x0D
	TagControlSettings RecordTag = 0x0E
	TagHeapDumpSegment RecordTag = 0x1C
	TagHeapDumpEnd     RecordTag = 0x2C
)

// HeapDumpTag identifies a sub-record nested inside a HEAP_DUMP or
// HEAP_DUMP_SEGMENT record.
type HeapDumpTag uint8

const (
	HeapTagRootUnknown      HeapDumpTag = 0xFF
	HeapTagRootJNIGlobal    HeapDumpTag = 0x01
	HeapTagRootJNILocal     HeapDumpTag = 0x02
	HeapTagRootJavaFrame    HeapDumpTag = 0x03
	HeapTagRootNativeStack  HeapDumpTag = 0x04
	HeapTagRootStickyClass  HeapDumpTag = 0x05
	HeapTagRootThreadBlock  HeapDumpTag = 0x06
	HeapTagRootMonitorUsed  HeapDumpTag = 0x07
	HeapTagRootThreadObject HeapDumpTag = 0x08

	HeapTagClassDump          HeapDumpTag = 0x20
	HeapTagInstanceDump       HeapDumpTag = 0x21
	HeapTagObjectArrayDump    HeapDumpTag = 0x22
	HeapTagPrimitiveArrayDump HeapDumpTag = 0x23

	// Vendor-extension sub-tags emitted by some JVMs/Android dumps. A sub-tag
	// in neither the standard set nor this list is UnknownSubTag (fatal);
	// these specific ones are known and consumed by length, never interpreted.
	HeapTagRootInternedString  HeapDumpTag = 0x89
	HeapTagRootFinalizing      HeapDumpTag = 0x8A
	HeapTagRootDebugger        HeapDumpTag = 0x8B
	HeapTagRootReferenceClean  HeapDumpTag = 0x8C
	HeapTagRootVMInternal      HeapDumpTag = 0x8D
	HeapTagRootJNIMonitor      HeapDumpTag = 0x8E
	HeapTagHeapDumpInfo        HeapDumpTag = 0xC3
	HeapTagRootUnreachable     HeapDumpTag = 0xFE
)

// BasicType identifies the primitive type of a field, array element, or
// static/local value.
type BasicType uint8

const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

// basicTypeSize returns the on-wire size in bytes of a value of type t.
// idSize is needed because TypeObject's size equals the dump's identifier
// width. Returns 0 for an unrecognized type.
func basicTypeSize(t BasicType, idSize int) int {
	switch t {
	case TypeObject:
		return idSize
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeFloat, TypeInt:
		return 4
	case TypeDouble, TypeLong:
		return 8
	default:
		return 0
	}
}

// Header is the fixed-size preamble of an HPROF file.
type Header struct {
	Format    string
	IDSize    int
	Timestamp time.Time
}

// FieldDescriptor is one entry of a class's instance-field layout, in
// declaration order as emitted by CLASS_DUMP.
type FieldDescriptor struct {
	NameID uint64
	Type   BasicType
}

// ClassLayout is the Aggregator's view of a class's CLASS_DUMP record. It is
// populated from CLASS_DUMP only; class names are resolved separately,
// through the class-name table filled by LOAD_CLASS records, which may
// arrive before or after the CLASS_DUMP (forward references, spec
// invariant I1).
type ClassLayout struct {
	ClassID        uint64
	NameID         uint64 // not filled in by the Aggregator; always 0
	SuperClassID   uint64
	InstanceSize   int // the instance size declared by CLASS_DUMP
	InstanceFields []FieldDescriptor
}

// syntheticArrayClassBase is added to a BasicType to build a stable
// synthetic class id for primitive arrays, so that `int[]` etc. aggregate
// under one id the same way a real class does. No real HPROF class id can
// collide with this range: real ids are heap addresses or table indices
// assigned by the JVM, and 0x1_0000_0000 is far above any realistic 32-bit
// address space still embeddable in a 64-bit id on 64-bit dumps produced by
// the JVMs this parser targets.
const syntheticArrayClassBase = 0x1_0000_0000

// syntheticPrimitiveArrayClassID returns the stable synthetic class id used
// to key statistics for primitive arrays of element type t.
func syntheticPrimitiveArrayClassID(t BasicType) uint64 {
	return syntheticArrayClassBase + uint64(t)
}
