package hprof

import (
	"context"

	"github.com/hprofstream/hprofstream/pkg/parallel"
)

// computeStringStats is the one ancillary, embarrassingly-parallel post-pass
// in this package: detecting duplicate string values across a potentially
// large string table is pure CPU work over an already-fully-materialized
// map, with no ordering or backpressure concerns, so it reaches for
// parallel.ParallelAggregate's worker-pool shape instead of the core
// pipeline's channel architecture (which the ordering and backpressure
// requirements of the main stream rule out — see the concurrency model).
func computeStringStats(strings map[uint64]string) StringStats {
	values := make([]string, 0, len(strings))
	for _, v := range strings {
		values = append(values, v)
	}

	counts := parallel.ParallelAggregate(
		context.Background(),
		values,
		parallel.DefaultPoolConfig(),
		func(s string) (string, int64) { return s, 1 },
		func(existing, n int64) int64 { return existing + n },
	)

	var stats StringStats
	stats.TotalCount = int64(len(values))
	stats.UniqueCount = int64(len(counts))
	for s, n := range counts {
		if n > 1 {
			stats.DuplicateCount += n - 1
			stats.DuplicateWasteBytes += (n - 1) * int64(len(s))
		}
	}
	return stats
}
