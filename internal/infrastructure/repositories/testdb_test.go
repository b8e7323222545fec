package repositories

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/rail-service/integration-hub/pkg/logger"
)

// openTestDB connects to a real local Postgres instance with the hub's
// migrations already applied (same assumption the hub's own docker-compose
// based dev loop makes: migrate once, then run the test suite against the
// resulting schema). Skips when DATABASE_URL isn't set, same convention
// config.Load uses for the production connection string.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database-backed test in short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping database-backed test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`TRUNCATE TABLE transactions, idempotency_keys, outbox_records, audit_logs, reconciliation_runs RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}

	return db
}

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}
