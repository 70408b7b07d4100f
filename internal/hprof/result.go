package hprof

import "time"

// ClassStat is one row of a top-N ranking: a class (real or synthetic array
// element type) and its accumulated instance statistics.
type ClassStat struct {
	ClassName             string `json:"class_name"`
	InstanceCount         int64  `json:"instance_count"`
	AllocationSizeBytes   int64  `json:"allocation_size_bytes"`
	LargestAllocationBytes int64 `json:"largest_allocation_bytes"`
}

// StackFrame is one frame of a resolved thread stack trace.
type StackFrame struct {
	ClassName  string `json:"class"`
	Method     string `json:"method"`
	SourceFile string `json:"source"`
	Line       int32  `json:"line"`
}

// ThreadStackTrace is a resolved STACK_TRACE record.
type ThreadStackTrace struct {
	ThreadSerial uint32       `json:"thread_serial"`
	Frames       []StackFrame `json:"frames"`
}

// StringStats summarizes duplicate string values across the dump's string
// table. See SPEC_FULL.md §7.2 — computed only when Config.AnalyzeStrings.
type StringStats struct {
	TotalCount          int64 `json:"total_count"`
	UniqueCount         int64 `json:"unique_count"`
	DuplicateCount      int64 `json:"duplicate_count"`
	DuplicateWasteBytes int64 `json:"duplicate_waste_bytes"`
}

// ArrayStats summarizes array allocations by element type. See
// SPEC_FULL.md §7.1 — computed only when Config.AnalyzeArrays.
type ArrayStats struct {
	TotalArrays  int64            `json:"total_arrays"`
	TotalBytes   int64            `json:"total_bytes"`
	EmptyArrays  int64            `json:"empty_arrays"`
	ByElementType map[string]int64 `json:"by_element_type"`
}

// Result is the output of a completed analysis run.
type Result struct {
	TotalHeapBytes      int64              `json:"total_heap_bytes"`
	TopAllocatedClasses []ClassStat        `json:"top_allocated_classes"`
	TopLargestInstances []ClassStat        `json:"top_largest_instances"`
	ThreadStackTraces   []ThreadStackTrace `json:"thread_stack_traces"`

	Strings []string `json:"strings,omitempty"`

	StringStats *StringStats `json:"string_stats,omitempty"`
	ArrayStats  *ArrayStats  `json:"array_stats,omitempty"`

	// ClassCategories maps a class name that appears in one of the top-N
	// lists to its coarse category (jdk, framework, application,
	// business). Populated only when a class filter package is wired in
	// by the caller (cmd/hprofstream); the core itself has no opinion on
	// category names beyond what it's told to exclude.
	ClassCategories map[string]string `json:"class_categories,omitempty"`

	Elapsed time.Duration `json:"elapsed"`

	// StageTimings is populated only when Config.Debug is set.
	StageTimings map[string]time.Duration `json:"stage_timings,omitempty"`
}
