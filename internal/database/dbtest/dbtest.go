// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"lautcoach/internal/database"
	"lautcoach/migrations"
)

// New returns a migrated SQLite database in t's temp dir, using the pure Go
// driver. It is closed when the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.NewPureSQLiteDialect(),
		database.DialectConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrationsFS(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
