package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rail-service/integration-hub/internal/domain/entities"
)

// OutboxFilter narrows the admin listing endpoint's view of the outbox.
type OutboxFilter struct {
	Queue  *entities.OutboxQueue
	Status *entities.OutboxStatus
	Limit  int
	Offset int
}

// OutboxRepository persists both outbox queues (toOperator and toRGS); the
// queue a row belongs to is a column, not a separate table, so a single
// implementation serves both.
type OutboxRepository interface {
	Enqueue(ctx context.Context, record *entities.OutboxRecord) error
	// EnqueueTx runs against an open *sql.Tx, for atomic ledger+outbox commits.
	EnqueueTx(ctx context.Context, dbTx *sql.Tx, record *entities.OutboxRecord) error
	// ClaimDue atomically claims up to limit due records from queue using
	// FOR UPDATE SKIP LOCKED, so concurrent dispatcher instances never
	// double-claim a row during a leader handoff window.
	ClaimDue(ctx context.Context, queue entities.OutboxQueue, limit int, now time.Time) ([]*entities.OutboxRecord, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttemptAt time.Time, attemptCount int, exhausted bool) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.OutboxRecord, error)
	List(ctx context.Context, filter OutboxFilter) ([]*entities.OutboxRecord, error)
	Count(ctx context.Context, filter OutboxFilter) (int64, error)
	// ForceReplay resets a record to pending and due immediately, for the
	// admin forced-replay endpoint.
	ForceReplay(ctx context.Context, id uuid.UUID) error
}
