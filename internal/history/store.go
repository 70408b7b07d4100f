package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hprofstream/hprofstream/internal/hprof"
)

// Store records and retrieves completed analysis runs. Grounded on
// repository.Repositories, trimmed to the one entity a streaming analyzer
// CLI needs persisted across invocations.
type Store struct {
	db *gorm.DB
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun records a completed analysis of inputPath, started at startedAt,
// and returns the assigned run ID.
func (s *Store) SaveRun(ctx context.Context, inputPath string, startedAt time.Time, result hprof.Result) (int64, error) {
	topAllocated, err := marshalJSONField(result.TopAllocatedClasses)
	if err != nil {
		return 0, fmt.Errorf("history: marshaling top allocated classes: %w", err)
	}
	topLargest, err := marshalJSONField(result.TopLargestInstances)
	if err != nil {
		return 0, fmt.Errorf("history: marshaling top largest instances: %w", err)
	}

	run := Run{
		InputPath:           inputPath,
		StartedAt:           startedAt,
		ElapsedMillis:       result.Elapsed.Milliseconds(),
		TotalHeapBytes:      result.TotalHeapBytes,
		TopAllocatedClasses: topAllocated,
		TopLargestInstances: topLargest,
	}

	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, fmt.Errorf("history: saving run: %w", err)
	}
	return run.ID, nil
}

// GetRun retrieves one previously saved run by ID.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).First(&run, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("history: run %d not found", id)
		}
		return nil, fmt.Errorf("history: getting run %d: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	return runs, nil
}
