package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/tracing"
)

// TransactionRepository persists the wallet-action ledger, one row per
// (refId, direction).
type TransactionRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewTransactionRepository(db *sql.DB, log *logger.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: log}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "INSERT", Table: "transactions"})
	defer span.End()

	query := `
		INSERT INTO transactions (
			id, ref_id, player_id, amount_cents, currency, direction, status,
			reason, balance_cents, correlation_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.RefID,
		tx.PlayerID,
		tx.AmountCents,
		tx.Currency,
		string(tx.Direction),
		string(tx.Status),
		tx.Reason,
		tx.BalanceCents,
		tx.CorrelationID,
		tx.CreatedAt,
	)
	tracing.EndDBSpan(span, err, 1)
	if err != nil {
		r.logger.Error("failed to create transaction", "error", err, "ref_id", tx.RefID)
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// CreateTx is Create run against an open transaction, so the ingress
// handler can insert the ledger row and the matching outbox row
// atomically via database.WithTransaction.
func (r *TransactionRepository) CreateTx(ctx context.Context, dbTx *sql.Tx, tx *entities.Transaction) error {
	_, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, ref_id, player_id, amount_cents, currency, direction, status,
			reason, balance_cents, correlation_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`,
		tx.ID,
		tx.RefID,
		tx.PlayerID,
		tx.AmountCents,
		tx.Currency,
		string(tx.Direction),
		string(tx.Status),
		tx.Reason,
		tx.BalanceCents,
		tx.CorrelationID,
		tx.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create transaction in tx", "error", err, "ref_id", tx.RefID)
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// UpdateStatusTx is UpdateStatus run against an open transaction, used by
// the incoming-webhook handler to commit the status flip alongside the
// toRGS outbox insert.
func (r *TransactionRepository) UpdateStatusTx(ctx context.Context, dbTx *sql.Tx, id uuid.UUID, status entities.TransactionStatus, reason *string, balanceCents *int64) error {
	result, err := dbTx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, reason = $2, balance_cents = $3 WHERE id = $4`,
		string(status), reason, balanceCents, id,
	)
	if err != nil {
		r.logger.Error("failed to update transaction status in tx", "error", err, "id", id)
		return fmt.Errorf("update transaction status: %w", err)
	}
	rows, _ := rowsAffectedOf(result)
	if rows == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

func (r *TransactionRepository) GetByRefID(ctx context.Context, refID string) (*entities.Transaction, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "transactions"})
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, ref_id, player_id, amount_cents, currency, direction, status,
			reason, balance_cents, correlation_id, created_at
		FROM transactions WHERE ref_id = $1`, refID)

	tx, err := r.scanTransaction(row)
	if err == sql.ErrNoRows {
		tracing.EndDBSpan(span, err, 0)
		return nil, fmt.Errorf("transaction not found: %s", refID)
	}
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		r.logger.Error("failed to get transaction by ref id", "error", err, "ref_id", refID)
		return nil, fmt.Errorf("get transaction by ref id: %w", err)
	}
	tracing.EndDBSpan(span, nil, 1)
	return tx, nil
}

func (r *TransactionRepository) GetByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*entities.Transaction, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "transactions"})
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, ref_id, player_id, amount_cents, currency, direction, status,
			reason, balance_cents, correlation_id, created_at
		FROM transactions WHERE correlation_id = $1`, correlationID)

	tx, err := r.scanTransaction(row)
	if err == sql.ErrNoRows {
		tracing.EndDBSpan(span, err, 0)
		return nil, fmt.Errorf("transaction not found for correlation id: %s", correlationID)
	}
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		r.logger.Error("failed to get transaction by correlation id", "error", err, "correlation_id", correlationID)
		return nil, fmt.Errorf("get transaction by correlation id: %w", err)
	}
	tracing.EndDBSpan(span, nil, 1)
	return tx, nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, reason *string, balanceCents *int64) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "transactions"})
	defer span.End()

	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = $1, reason = $2, balance_cents = $3 WHERE id = $4`,
		string(status), reason, balanceCents, id,
	)
	rows, _ := rowsAffectedOf(result)
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		r.logger.Error("failed to update transaction status", "error", err, "id", id)
		return fmt.Errorf("update transaction status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

func (r *TransactionRepository) ListSince(ctx context.Context, since time.Time) ([]*entities.Transaction, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "transactions"})
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ref_id, player_id, amount_cents, currency, direction, status,
			reason, balance_cents, correlation_id, created_at
		FROM transactions
		WHERE created_at >= $1
		ORDER BY created_at ASC`, since)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		r.logger.Error("failed to list transactions since", "error", err)
		return nil, fmt.Errorf("list transactions since: %w", err)
	}
	defer rows.Close()

	var txs []*entities.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			r.logger.Error("failed to scan transaction", "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	tracing.EndDBSpan(span, nil, int64(len(txs)))
	return txs, nil
}

func (r *TransactionRepository) scanTransaction(scanner interface {
	Scan(dest ...interface{}) error
}) (*entities.Transaction, error) {
	var tx entities.Transaction
	var direction, status string

	err := scanner.Scan(
		&tx.ID,
		&tx.RefID,
		&tx.PlayerID,
		&tx.AmountCents,
		&tx.Currency,
		&direction,
		&status,
		&tx.Reason,
		&tx.BalanceCents,
		&tx.CorrelationID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Direction = entities.WalletAction(direction)
	tx.Status = entities.TransactionStatus(status)

	return &tx, nil
}
