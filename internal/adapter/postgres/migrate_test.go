package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/sispromo/sispromo/internal/adapter/postgres"
)

const totalMigrations = 3

// TestMigrationUpDown applies all migrations, rolls them all back, then
// re-applies, so every Down section gets exercised.
func TestMigrationUpDown(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()

	check := func(step string, want int64) {
		t.Helper()
		v, err := postgres.MigrationVersion(ctx, dsn)
		if err != nil {
			t.Fatalf("MigrationVersion after %s: %v", step, err)
		}
		if v != want {
			t.Fatalf("version after %s = %d, want %d", step, v, want)
		}
	}

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("RunMigrations (up): %v", err)
	}
	check("up", totalMigrations)

	if err := postgres.RollbackMigrations(ctx, dsn, totalMigrations); err != nil {
		t.Fatalf("RollbackMigrations: %v", err)
	}
	check("rollback", 0)

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("RunMigrations (re-up): %v", err)
	}
	check("re-up", totalMigrations)
}
