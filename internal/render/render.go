// Package render turns a completed analysis Result into either a
// human-readable table report or machine-readable JSON.
package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/hprofstream/hprofstream/internal/hprof"
	"github.com/hprofstream/hprofstream/pkg/writer"
)

// Format names an output rendering.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Write renders result to w in the named format. An unrecognized format
// falls back to table, matching formatter.Registry's fallback-to-default
// behavior rather than erroring on a typo'd --format flag.
func Write(w io.Writer, result hprof.Result, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	default:
		return writeTable(w, result)
	}
}

func writeJSON(w io.Writer, result hprof.Result) error {
	jw := writer.NewPrettyJSONWriter[hprof.Result]()
	return jw.Write(result, w)
}

// writeTable prints the report in the sectioned, "=== Heading ===" style
// used throughout the formatter package, generalized from a Logger-based
// formatter (which assumes a running service emitting to structured logs)
// to a plain io.Writer, since a one-shot CLI invocation just prints to
// stdout.
func writeTable(w io.Writer, result hprof.Result) error {
	fmt.Fprintln(w, "=== Heap Summary ===")
	fmt.Fprintf(w, "  Total Heap Size: %s (%d bytes)\n", formatBytes(result.TotalHeapBytes), result.TotalHeapBytes)
	fmt.Fprintf(w, "  Elapsed:         %s\n", result.Elapsed)
	fmt.Fprintln(w)

	writeClassTable(w, "Top Allocated Classes (by total bytes)", result.TopAllocatedClasses, result.ClassCategories,
		func(cs hprof.ClassStat) int64 { return cs.AllocationSizeBytes })
	writeClassTable(w, "Top Largest Single Instances", result.TopLargestInstances, result.ClassCategories,
		func(cs hprof.ClassStat) int64 { return cs.LargestAllocationBytes })

	if result.ArrayStats != nil {
		fmt.Fprintln(w, "=== Array Stats ===")
		fmt.Fprintf(w, "  Total Arrays: %d (%s)\n", result.ArrayStats.TotalArrays, formatBytes(result.ArrayStats.TotalBytes))
		fmt.Fprintf(w, "  Empty Arrays: %d\n", result.ArrayStats.EmptyArrays)
		for _, elemType := range sortedKeys(result.ArrayStats.ByElementType) {
			fmt.Fprintf(w, "  %-12s %d\n", elemType, result.ArrayStats.ByElementType[elemType])
		}
		fmt.Fprintln(w)
	}

	if result.StringStats != nil {
		fmt.Fprintln(w, "=== String Stats ===")
		fmt.Fprintf(w, "  Total:     %d\n", result.StringStats.TotalCount)
		fmt.Fprintf(w, "  Unique:    %d\n", result.StringStats.UniqueCount)
		fmt.Fprintf(w, "  Duplicate: %d (%s wasted)\n", result.StringStats.DuplicateCount, formatBytes(result.StringStats.DuplicateWasteBytes))
		fmt.Fprintln(w)
	}

	if len(result.ThreadStackTraces) > 0 {
		fmt.Fprintln(w, "=== Thread Stack Traces ===")
		for i, st := range result.ThreadStackTraces {
			if i >= 10 {
				fmt.Fprintf(w, "  ... and %d more threads\n", len(result.ThreadStackTraces)-10)
				break
			}
			fmt.Fprintf(w, "  Thread %d:\n", st.ThreadSerial)
			for j, f := range st.Frames {
				if j >= 20 {
					fmt.Fprintf(w, "    ... and %d more frames\n", len(st.Frames)-20)
					break
				}
				fmt.Fprintf(w, "    at %s.%s(%s:%d)\n", f.ClassName, f.Method, f.SourceFile, f.Line)
			}
		}
		fmt.Fprintln(w)
	}

	if len(result.StageTimings) > 0 {
		fmt.Fprintln(w, "=== Stage Timings ===")
		for _, name := range sortedKeys(result.StageTimings) {
			fmt.Fprintf(w, "  %-16s %s\n", name, result.StageTimings[name])
		}
	}

	return nil
}

func writeClassTable(w io.Writer, title string, stats []hprof.ClassStat, categories map[string]string, size func(hprof.ClassStat) int64) {
	if len(stats) == 0 {
		return
	}
	fmt.Fprintf(w, "=== %s ===\n", title)
	for i, cs := range stats {
		cat := categories[cs.ClassName]
		if cat != "" {
			cat = " [" + cat + "]"
		}
		fmt.Fprintf(w, "  %3d. %-50s  %12s  %10d instances%s\n",
			i+1, truncate(cs.ClassName, 50), formatBytes(size(cs)), cs.InstanceCount, cat)
	}
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
