package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDatabaseURLEnv names the variable that enables database integration tests
const TestDatabaseURLEnv = "QUAIL_TEST_DATABASE_URL"

// SetupTestDB connects to the database named by QUAIL_TEST_DATABASE_URL,
// applies migrations and empties every table. The test is skipped when the
// variable is unset.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("integration test: set %s to run", TestDatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	if _, err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if _, err := db.pool.Exec(ctx, "TRUNCATE users, strategies, backtests, metrics, tokens CASCADE"); err != nil {
		db.Close()
		t.Fatalf("failed to truncate test database: %v", err)
	}

	t.Cleanup(db.Close)
	return db
}
