// Package history persists a record of completed analysis runs so past
// results can be listed and compared without re-parsing the original dump.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/hprofstream/hprofstream/pkg/telemetry"
)

// defaultDSN is used when Open is given an empty dsn: a file-backed sqlite
// database living alongside wherever the process runs.
const defaultDSN = "hprofstream_history.db"

// Open dials the run-history database named by dsn and returns a ready
// *Store. dsn is dispatched by prefix: postgres:// and mysql:// select
// those drivers; anything else (including "") is treated as a sqlite file
// path. Grounded on repository.NewGormDB, generalized from a fixed
// host/port/user DBConfig to a single DSN string, since a CLI tool's
// history store has one connection, not a pool of application tenants.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "mysql://"):
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	default:
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}

	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("history: enabling telemetry: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("history: getting underlying connection: %w", err)
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("history: pinging database: %w", err)
	}

	if err := db.AutoMigrate(&Run{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("history: migrating schema: %w", err)
	}

	return &Store{db: db}, nil
}
