package hprof

// Event is produced by the Record Parser stage and consumed exclusively by
// the Aggregator. Every concrete event type implements isEvent so the
// channel between the two stages can carry a single element type.
type Event interface {
	isEvent()
}

// StringEvent is a STRING record: an id/value pair added to the string
// table. IDs are unique per dump; last-wins is the documented behavior on a
// (pathological) duplicate.
type StringEvent struct {
	ID    uint64
	Value string
}

func (StringEvent) isEvent() {}

// LoadClassEvent names a class id. May arrive before or after the
// corresponding ClassDumpEvent (forward reference, invariant I1).
type LoadClassEvent struct {
	ClassSerial  uint32
	ClassID      uint64
	ClassNameID  uint64
	StackTraceID uint32
}

func (LoadClassEvent) isEvent() {}

// ClassDumpEvent carries a class's layout, independent of whether its name
// has been resolved yet.
type ClassDumpEvent struct {
	ClassID        uint64
	SuperClassID   uint64
	InstanceSize   int
	InstanceFields []FieldDescriptor
}

func (ClassDumpEvent) isEvent() {}

// InstanceDumpEvent is one instance-dump heap sub-record. InstanceBytes is
// the record's own declared data length; the parser does not consult any
// class layout to compute it.
type InstanceDumpEvent struct {
	ObjectID      uint64
	ClassID       uint64
	InstanceBytes int64
}

func (InstanceDumpEvent) isEvent() {}

// ObjectArrayEvent is an object-array-dump heap sub-record. ClassID
// identifies the array's own class (e.g. the class an HPROF writer names
// "[Ljava.lang.String;"), resolved the same way any other class id is:
// through LOAD_CLASS plus the class-name table, not by materializing a
// reference graph of the elements.
type ObjectArrayEvent struct {
	ArrayObjectID uint64
	ClassID       uint64
	ElementCount  int
	TotalBytes    int64
}

func (ObjectArrayEvent) isEvent() {}

// PrimitiveArrayEvent is a primitive-array-dump heap sub-record.
type PrimitiveArrayEvent struct {
	ArrayObjectID uint64
	ElementType   BasicType
	ElementCount  int
	TotalBytes    int64
}

func (PrimitiveArrayEvent) isEvent() {}

// GCRootEvent marks an object id as reachable via some root kind. The
// Aggregator only counts these (spec Non-goals exclude reference-graph
// traversal); it never walks from a root into the rest of the heap.
type GCRootEvent struct {
	ObjectID uint64
	RootKind HeapDumpTag
}

func (GCRootEvent) isEvent() {}

// StackFrameEvent is a STACK_FRAME record.
type StackFrameEvent struct {
	FrameID      uint64
	MethodNameID uint64
	SourceFileID uint64
	ClassSerial  uint32
	Line         int32
}

func (StackFrameEvent) isEvent() {}

// StackTraceEvent is a STACK_TRACE record naming the ordered frame ids for
// one thread's captured stack.
type StackTraceEvent struct {
	StackTraceSerial uint32
	ThreadSerial     uint32
	FrameIDs         []uint64
}

func (StackTraceEvent) isEvent() {}

// HeapSummaryEvent is a HEAP_SUMMARY record. The Aggregator keeps the last
// one it sees but does not compare it with its own running totals.
type HeapSummaryEvent struct {
	TotalLiveBytes   int64
	TotalLiveObjects int64
}

func (HeapSummaryEvent) isEvent() {}
