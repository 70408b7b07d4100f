package hprof

import (
	"sort"

	"github.com/hprofstream/hprofstream/pkg/filter"
)

// classAgg is the running total for one class id (real or synthetic).
type classAgg struct {
	classID       uint64
	instanceCount int64
	totalBytes    int64
	largestBytes  int64
}

type rawStackFrame struct {
	methodNameID uint64
	sourceFileID uint64
	classSerial  uint32
	line         int32
}

type rawStackTrace struct {
	stackTraceSerial uint32
	threadSerial     uint32
	frameIDs         []uint64
}

// Aggregator is the fourth pipeline stage: it owns every piece of running
// state and is the only component that mutates it, so it needs no locking
// even though it runs on its own goroutine — state never crosses a
// goroutine boundary except as an immutable Event value received over a
// channel. Class statistics are keyed by raw class id exactly as seen on
// the wire; names are resolved once, at Finish, which is what makes the
// Aggregator tolerant of forward references (a CLASS_DUMP or LOAD_CLASS
// record may arrive after instances of that class have already been
// counted — invariant I1).
type Aggregator struct {
	idSize int

	strings        map[uint64]string
	classNames     map[uint64]uint64 // classID -> name string id
	classSerialIDs map[uint32]uint64 // LOAD_CLASS class serial -> classID
	classLayouts   map[uint64]*ClassLayout
	classes        map[uint64]*classAgg

	totalHeapBytes int64
	totalInstances int64
	gcRootCount    int64

	heapSummary *HeapSummaryEvent

	stackFrames map[uint64]rawStackFrame
	stackTraces []rawStackTrace

	arrayStats ArrayStats
}

// SetIDSize records the identifier width declared by the stream's header.
// Must be called before any InstanceDumpEvent is applied; the Pipeline
// Driver calls it from the framer goroutine immediately after parsing the
// header and before emitting the first Event, so the subsequent channel
// send/receive establishes the happens-before edge this relies on.
func (a *Aggregator) SetIDSize(idSize int) {
	a.idSize = idSize
}

// NewAggregator constructs an Aggregator for a dump whose header declared
// the given identifier size. Pass 0 when the size is not yet known and
// call SetIDSize once it is (see the Pipeline Driver).
func NewAggregator(idSize int) *Aggregator {
	return &Aggregator{
		idSize:         idSize,
		strings:        make(map[uint64]string),
		classNames:     make(map[uint64]uint64),
		classSerialIDs: make(map[uint32]uint64),
		classLayouts:   make(map[uint64]*ClassLayout),
		classes:        make(map[uint64]*classAgg),
		stackFrames:    make(map[uint64]rawStackFrame),
		arrayStats:     ArrayStats{ByElementType: make(map[string]int64)},
	}
}

// Apply folds one Event into the running state. It never fails: every
// well-formed Event is valid input regardless of arrival order.
func (a *Aggregator) Apply(ev Event) {
	switch e := ev.(type) {
	case StringEvent:
		a.strings[e.ID] = e.Value // last-wins on a duplicate id

	case LoadClassEvent:
		a.classNames[e.ClassID] = e.ClassNameID
		a.classSerialIDs[e.ClassSerial] = e.ClassID

	case ClassDumpEvent:
		a.classLayouts[e.ClassID] = &ClassLayout{
			ClassID:        e.ClassID,
			SuperClassID:   e.SuperClassID,
			InstanceSize:   e.InstanceSize,
			InstanceFields: e.InstanceFields,
		}

	case InstanceDumpEvent:
		a.account(e.ClassID, e.InstanceBytes)

	case ObjectArrayEvent:
		a.account(e.ClassID, e.TotalBytes)
		a.recordArray(e.ElementCount, e.TotalBytes, "")

	case PrimitiveArrayEvent:
		classID := syntheticPrimitiveArrayClassID(e.ElementType)
		a.account(classID, e.TotalBytes)
		a.recordArray(e.ElementCount, e.TotalBytes, primitiveArrayTypeName(e.ElementType))

	case GCRootEvent:
		a.gcRootCount++

	case StackFrameEvent:
		a.stackFrames[e.FrameID] = rawStackFrame{
			methodNameID: e.MethodNameID,
			sourceFileID: e.SourceFileID,
			classSerial:  e.ClassSerial,
			line:         e.Line,
		}

	case StackTraceEvent:
		a.stackTraces = append(a.stackTraces, rawStackTrace{
			stackTraceSerial: e.StackTraceSerial,
			threadSerial:      e.ThreadSerial,
			frameIDs:          e.FrameIDs,
		})

	case HeapSummaryEvent:
		he := e
		a.heapSummary = &he
	}
}

func (a *Aggregator) account(classID uint64, size int64) {
	agg, ok := a.classes[classID]
	if !ok {
		agg = &classAgg{classID: classID}
		a.classes[classID] = agg
	}
	agg.instanceCount++
	agg.totalBytes += size
	if size > agg.largestBytes {
		agg.largestBytes = size
	}
	a.totalInstances++
	a.totalHeapBytes += size
}

func (a *Aggregator) recordArray(elementCount int, totalBytes int64, primitiveName string) {
	a.arrayStats.TotalArrays++
	a.arrayStats.TotalBytes += totalBytes
	if elementCount == 0 {
		a.arrayStats.EmptyArrays++
	}
	key := primitiveName
	if key == "" {
		key = "object[]"
	}
	a.arrayStats.ByElementType[key] += totalBytes
}

// className resolves a class id to its display name, falling back to a
// synthesized placeholder when no LOAD_CLASS record ever named it (a
// genuinely malformed but non-fatal dump) or to the primitive array name
// for a synthetic id.
func (a *Aggregator) className(classID uint64) string {
	if classID >= syntheticArrayClassBase {
		return primitiveArrayTypeName(BasicType(classID - syntheticArrayClassBase))
	}
	if nameID, ok := a.classNames[classID]; ok {
		if name, ok := a.strings[nameID]; ok {
			return normalizeClassName(name)
		}
	}
	return unresolvedClassName(classID)
}

func unresolvedClassName(classID uint64) string {
	return "<unresolved class 0x" + hex64(classID) + ">"
}

func hex64(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Finish resolves class names, sorts the top-N rankings, and returns the
// final Result. cfg controls TopN, ListStrings, and the optional
// StringStats/ArrayStats analyses (SPEC_FULL.md §7.1–§7.2).
func (a *Aggregator) Finish(cfg Config) Result {
	stats := make([]ClassStat, 0, len(a.classes))
	for _, agg := range a.classes {
		stats = append(stats, ClassStat{
			ClassName:              a.className(agg.classID),
			InstanceCount:          agg.instanceCount,
			AllocationSizeBytes:    agg.totalBytes,
			LargestAllocationBytes: agg.largestBytes,
		})
	}

	byTotal := make([]ClassStat, len(stats))
	copy(byTotal, stats)
	sort.Slice(byTotal, func(i, j int) bool {
		return classStatLess(byTotal[i], byTotal[j], func(s ClassStat) int64 { return s.AllocationSizeBytes })
	})
	byTotal = excludeCategory(byTotal, cfg.ClassFilter)

	byLargest := make([]ClassStat, len(stats))
	copy(byLargest, stats)
	sort.Slice(byLargest, func(i, j int) bool {
		return classStatLess(byLargest[i], byLargest[j], func(s ClassStat) int64 { return s.LargestAllocationBytes })
	})
	byLargest = excludeCategory(byLargest, cfg.ClassFilter)

	topN := cfg.TopN
	res := Result{
		TotalHeapBytes:      a.totalHeapBytes,
		TopAllocatedClasses: truncateClassStats(byTotal, topN),
		TopLargestInstances: truncateClassStats(byLargest, topN),
		ThreadStackTraces:   a.resolveStackTraces(),
	}

	if cfg.ListStrings {
		res.Strings = a.sortedStringValues()
	}
	if cfg.AnalyzeStrings {
		ss := computeStringStats(a.strings)
		res.StringStats = &ss
	}
	if cfg.AnalyzeArrays {
		as := a.arrayStats
		res.ArrayStats = &as
	}

	return res
}

// excludeCategory drops every entry whose class name classifies into the
// named category (jdk, framework, primitive, application, business) from a
// ranking already sorted by the caller. An empty category is a no-op. This
// only changes what is reported in the top-N lists, never TotalHeapBytes or
// any per-class count computed before ranking (P9).
func excludeCategory(sorted []ClassStat, category string) []ClassStat {
	if category == "" {
		return sorted
	}
	out := sorted[:0:0]
	for _, cs := range sorted {
		if filter.Classify(cs.ClassName).String() == category {
			continue
		}
		out = append(out, cs)
	}
	return out
}

// classStatLess orders descending by the chosen metric, then descending by
// instance count, then ascending by name — a fully deterministic order so
// that truncating to TopN is stable across runs and across chunk sizes
// (testable property P4).
func classStatLess(a, b ClassStat, metric func(ClassStat) int64) bool {
	ma, mb := metric(a), metric(b)
	if ma != mb {
		return ma > mb
	}
	if a.InstanceCount != b.InstanceCount {
		return a.InstanceCount > b.InstanceCount
	}
	return a.ClassName < b.ClassName
}

func truncateClassStats(sorted []ClassStat, n int) []ClassStat {
	if n <= 0 || n >= len(sorted) {
		return sorted
	}
	return sorted[:n]
}

func (a *Aggregator) sortedStringValues() []string {
	out := make([]string, 0, len(a.strings))
	for _, v := range a.strings {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (a *Aggregator) resolveStackTraces() []ThreadStackTrace {
	if len(a.stackTraces) == 0 {
		return nil
	}
	out := make([]ThreadStackTrace, 0, len(a.stackTraces))
	for _, rt := range a.stackTraces {
		frames := make([]StackFrame, 0, len(rt.frameIDs))
		for _, fid := range rt.frameIDs {
			rf, ok := a.stackFrames[fid]
			if !ok {
				continue
			}
			classID := a.classSerialIDs[rf.classSerial]
			frames = append(frames, StackFrame{
				ClassName:  a.className(classID),
				Method:     a.strings[rf.methodNameID],
				SourceFile: a.strings[rf.sourceFileID],
				Line:       rf.line,
			})
		}
		out = append(out, ThreadStackTrace{ThreadSerial: rt.threadSerial, Frames: frames})
	}
	return out
}
