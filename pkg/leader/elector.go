// Package leader elects a single dispatcher owner across a horizontally
// scaled fleet using a Postgres session-scoped advisory lock. It is a
// pragmatic single-key mutex, not distributed consensus: the lock is tied
// to one pooled connection and releases automatically if that connection
// drops, which is what lets a new owner take over within one poll
// interval without an explicit handoff protocol.
package leader

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/rail-service/integration-hub/pkg/logger"
)

// Elector holds (or attempts to acquire) a named advisory lock on a
// dedicated connection for as long as the process runs.
type Elector struct {
	db           *sql.DB
	lockKey      int64
	pollInterval time.Duration
	logger       *logger.Logger

	isLeader int32 // accessed atomically; 1 while this process holds the lock

	conn   *sql.Conn
	cancel context.CancelFunc
}

// New builds an Elector for lockName. The same lockName across processes
// contends for the same lock; use one name per logical singleton task.
func New(db *sql.DB, lockName string, pollInterval time.Duration, log *logger.Logger) *Elector {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Elector{
		db:           db,
		lockKey:      hashLockName(lockName),
		pollInterval: pollInterval,
		logger:       log,
	}
}

// Start begins the acquire/hold/retry loop in a background goroutine.
func (e *Elector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.loop(runCtx)
	return nil
}

// Shutdown releases the lock, if held, and stops the acquire loop.
func (e *Elector) Shutdown(timeout time.Duration) error {
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.release(ctx)
}

// IsLeader reports whether this process currently holds the advisory
// lock. Safe for concurrent use.
func (e *Elector) IsLeader() bool {
	return atomic.LoadInt32(&e.isLeader) == 1
}

func (e *Elector) loop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	e.tryAcquireOrHold(ctx)
	for {
		select {
		case <-ctx.Done():
			_ = e.release(context.Background())
			return
		case <-ticker.C:
			e.tryAcquireOrHold(ctx)
		}
	}
}

// tryAcquireOrHold checks the held connection is still alive, or attempts
// a fresh acquisition if this process is not currently the leader.
func (e *Elector) tryAcquireOrHold(ctx context.Context) {
	if e.IsLeader() {
		if err := e.conn.PingContext(ctx); err != nil {
			e.logger.Warn("leader connection lost, relinquishing lock", "error", err)
			atomic.StoreInt32(&e.isLeader, 0)
			e.conn = nil
		}
		return
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		e.logger.Error("failed to open connection for advisory lock attempt", "error", err)
		return
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, e.lockKey).Scan(&acquired); err != nil {
		e.logger.Error("advisory lock attempt failed", "error", err)
		conn.Close()
		return
	}

	if !acquired {
		conn.Close()
		return
	}

	e.conn = conn
	atomic.StoreInt32(&e.isLeader, 1)
	e.logger.Info("acquired dispatcher leader lock", "lock_key", e.lockKey)
}

func (e *Elector) release(ctx context.Context) error {
	if !e.IsLeader() || e.conn == nil {
		return nil
	}
	_, err := e.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, e.lockKey)
	closeErr := e.conn.Close()
	atomic.StoreInt32(&e.isLeader, 0)
	e.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}

func hashLockName(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
