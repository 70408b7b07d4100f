package history

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Run represents one completed analysis in the run_history table.
// Grounded on repository.HotmethodTask/GeneralAnalysisResult, collapsed
// into a single table since a CLI history store has no separate
// task/result/suggestion lifecycle to track.
type Run struct {
	ID                  int64     `gorm:"column:id;primaryKey;autoIncrement"`
	InputPath           string    `gorm:"column:input_path;type:varchar(1024)"`
	StartedAt           time.Time `gorm:"column:started_at"`
	ElapsedMillis       int64     `gorm:"column:elapsed_millis"`
	TotalHeapBytes      int64     `gorm:"column:total_heap_bytes"`
	TopAllocatedClasses JSONField `gorm:"column:top_allocated_classes;type:json"`
	TopLargestInstances JSONField `gorm:"column:top_largest_instances;type:json"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for Run.
func (Run) TableName() string {
	return "run_history"
}

// JSONField is a custom type for storing arbitrary JSON payloads in a
// text/json column. Grounded on repository.JSONField.
type JSONField []byte

// Value implements driver.Valuer.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("history: unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func marshalJSONField(v interface{}) (JSONField, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONField(b), nil
}
