package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rail-service/integration-hub/internal/domain/entities"
)

// TransactionRepository persists the hub's wallet-action ledger: one row
// per (refId, direction), created at ingress and updated by the
// incoming-webhook handler as it moves through its status lifecycle.
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	// CreateTx and UpdateStatusTx run against an open *sql.Tx so the
	// ingress and incoming-webhook handlers can commit the ledger change
	// and its paired outbox insert atomically.
	CreateTx(ctx context.Context, dbTx *sql.Tx, tx *entities.Transaction) error
	UpdateStatusTx(ctx context.Context, dbTx *sql.Tx, id uuid.UUID, status entities.TransactionStatus, reason *string, balanceCents *int64) error
	GetByRefID(ctx context.Context, refID string) (*entities.Transaction, error)
	GetByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*entities.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, reason *string, balanceCents *int64) error
	ListSince(ctx context.Context, since time.Time) ([]*entities.Transaction, error)
}
