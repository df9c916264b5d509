// Package dbtest opens a migrated in-memory database for service tests.
package dbtest

import (
	"fmt"
	"testing"

	"studyforest/internal/db"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Open returns a fresh migrated SQLite database private to tb.
// The pool holds a single connection, so concurrent callers are serialized
// the way row locks serialize them on postgres.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	gdb, err := db.Open(sqlite.Open(dsn), zerolog.Nop())
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return gdb
}
