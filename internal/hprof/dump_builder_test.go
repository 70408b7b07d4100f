package hprof

import (
	"bytes"
	"encoding/binary"
)

// dumpBuilder assembles a well-formed, minimal HPROF byte stream for unit
// tests, mirroring the hand-built buffers the teacher's own tests construct
// with bytes.Buffer + binary.Write, generalized into a small fluent helper
// so each test doesn't repeat the header/record-framing boilerplate.
type dumpBuilder struct {
	buf    bytes.Buffer
	idSize int
}

func newDumpBuilder(idSize int) *dumpBuilder {
	b := &dumpBuilder{idSize: idSize}
	b.buf.WriteString("JAVA PROFILE 1.0.2")
	b.buf.WriteByte(0)
	binary.Write(&b.buf, binary.BigEndian, uint32(idSize))
	binary.Write(&b.buf, binary.BigEndian, uint64(1700000000000))
	return b
}

func (b *dumpBuilder) writeID(v uint64) {
	if b.idSize == 4 {
		binary.Write(&b.buf, binary.BigEndian, uint32(v))
	} else {
		binary.Write(&b.buf, binary.BigEndian, v)
	}
}

func (b *dumpBuilder) record(tag RecordTag, payload []byte) {
	b.buf.WriteByte(byte(tag))
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(len(payload)))
	b.buf.Write(payload)
}

func (b *dumpBuilder) string(id uint64, value string) {
	var p bytes.Buffer
	pb := &dumpBuilder{idSize: b.idSize}
	pb.buf = p
	pb.writeID(id)
	pb.buf.WriteString(value)
	b.record(TagString, pb.buf.Bytes())
}

func (b *dumpBuilder) loadClass(classSerial uint32, classID, nameID uint64) {
	pb := &dumpBuilder{idSize: b.idSize}
	binary.Write(&pb.buf, binary.BigEndian, classSerial)
	pb.writeID(classID)
	binary.Write(&pb.buf, binary.BigEndian, uint32(0)) // stack trace serial
	pb.writeID(nameID)
	b.record(TagLoadClass, pb.buf.Bytes())
}

// heapDump wraps one or more already-encoded sub-records in a single
// HEAP_DUMP top-level record.
func (b *dumpBuilder) heapDump(subrecords ...[]byte) {
	var payload bytes.Buffer
	for _, s := range subrecords {
		payload.Write(s)
	}
	b.record(TagHeapDump, payload.Bytes())
}

func (b *dumpBuilder) subID(v uint64) []byte {
	pb := &dumpBuilder{idSize: b.idSize}
	pb.writeID(v)
	return pb.buf.Bytes()
}

func (b *dumpBuilder) classDumpSub(classID, superClassID uint64, instanceSize uint32) []byte {
	pb := &dumpBuilder{idSize: b.idSize}
	pb.buf.WriteByte(byte(HeapTagClassDump))
	pb.writeID(classID)
	binary.Write(&pb.buf, binary.BigEndian, uint32(0)) // stack trace serial
	pb.writeID(superClassID)
	for i := 0; i < 5; i++ {
		pb.writeID(0) // loader, signers, protection domain, reserved1, reserved2
	}
	binary.Write(&pb.buf, binary.BigEndian, instanceSize)
	binary.Write(&pb.buf, binary.BigEndian, uint16(0)) // constant pool size
	binary.Write(&pb.buf, binary.BigEndian, uint16(0)) // static field count
	binary.Write(&pb.buf, binary.BigEndian, uint16(0)) // instance field count
	return pb.buf.Bytes()
}

func (b *dumpBuilder) instanceDumpSub(objectID, classID uint64, data []byte) []byte {
	pb := &dumpBuilder{idSize: b.idSize}
	pb.buf.WriteByte(byte(HeapTagInstanceDump))
	pb.writeID(objectID)
	binary.Write(&pb.buf, binary.BigEndian, uint32(0)) // stack trace serial
	pb.writeID(classID)
	binary.Write(&pb.buf, binary.BigEndian, uint32(len(data)))
	pb.buf.Write(data)
	return pb.buf.Bytes()
}

func (b *dumpBuilder) objectArrayDumpSub(arrayID, classID uint64, elements []uint64) []byte {
	pb := &dumpBuilder{idSize: b.idSize}
	pb.buf.WriteByte(byte(HeapTagObjectArrayDump))
	pb.writeID(arrayID)
	binary.Write(&pb.buf, binary.BigEndian, uint32(0)) // stack trace serial
	binary.Write(&pb.buf, binary.BigEndian, uint32(len(elements)))
	pb.writeID(classID)
	for _, e := range elements {
		pb.writeID(e)
	}
	return pb.buf.Bytes()
}

func (b *dumpBuilder) primitiveArrayDumpSub(arrayID uint64, elemType BasicType, count int) []byte {
	pb := &dumpBuilder{idSize: b.idSize}
	pb.buf.WriteByte(byte(HeapTagPrimitiveArrayDump))
	pb.writeID(arrayID)
	binary.Write(&pb.buf, binary.BigEndian, uint32(0)) // stack trace serial
	binary.Write(&pb.buf, binary.BigEndian, uint32(count))
	pb.buf.WriteByte(byte(elemType))
	elemSize := basicTypeSize(elemType, b.idSize)
	pb.buf.Write(make([]byte, count*elemSize))
	return pb.buf.Bytes()
}

func (b *dumpBuilder) rootUnknownSub(objectID uint64) []byte {
	pb := &dumpBuilder{idSize: b.idSize}
	pb.buf.WriteByte(byte(HeapTagRootUnknown))
	pb.writeID(objectID)
	return pb.buf.Bytes()
}

func (b *dumpBuilder) heapSummary(liveBytes, liveInstances uint32) {
	var p bytes.Buffer
	binary.Write(&p, binary.BigEndian, liveBytes)
	binary.Write(&p, binary.BigEndian, liveInstances)
	binary.Write(&p, binary.BigEndian, uint32(0)) // alloc bytes, unused
	binary.Write(&p, binary.BigEndian, uint32(0)) // alloc instances, unused
	b.record(TagHeapSummary, p.Bytes())
}

func (b *dumpBuilder) bytes() []byte {
	return b.buf.Bytes()
}
