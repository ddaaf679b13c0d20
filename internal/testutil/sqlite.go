// Package testutil provides migrated in-memory databases for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/garyjia/budget-gate/pkg/database"
	"go.uber.org/zap"
)

var dbSeq atomic.Int64

// NewDB opens a private, fully migrated in-memory database closed at test cleanup
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	cfg := database.Config{
		Path:     fmt.Sprintf("%s_%d", name, dbSeq.Add(1)),
		InMemory: true,
	}

	logger := zap.NewNop()
	db, err := database.New(cfg, logger)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.NewMigrator(db, logger).Run(database.Migrations()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
