package leader

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/integration-hub/pkg/logger"
)

func TestHashLockNameIsDeterministic(t *testing.T) {
	a := hashLockName("dispatcher")
	b := hashLockName("dispatcher")
	assert.Equal(t, a, b)

	c := hashLockName("reconciliation")
	assert.NotEqual(t, a, c, "expected distinct lock names to hash to distinct keys")
}

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
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestElectorAcquiresAndReleasesLock(t *testing.T) {
	db := openTestDB(t)
	e := New(db, "test-dispatcher-lock", 20*time.Millisecond, logger.New("error", "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !e.IsLeader() {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, e.IsLeader(), "expected the sole elector to acquire the advisory lock")

	require.NoError(t, e.Shutdown(time.Second))
	assert.False(t, e.IsLeader())
}

func TestElectorSecondInstanceDoesNotAcquireHeldLock(t *testing.T) {
	db := openTestDB(t)
	lockName := "test-exclusive-lock"

	first := New(db, lockName, 20*time.Millisecond, logger.New("error", "test"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, first.Start(ctx))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !first.IsLeader() {
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, first.IsLeader())

	second := New(db, lockName, 20*time.Millisecond, logger.New("error", "test"))
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	require.NoError(t, second.Start(ctx2))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, second.IsLeader(), "expected a second elector to be shut out while the first holds the lock")

	require.NoError(t, first.Shutdown(time.Second))
	require.NoError(t, second.Shutdown(time.Second))
}
