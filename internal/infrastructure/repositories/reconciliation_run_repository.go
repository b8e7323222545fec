package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/tracing"
)

type ReconciliationRunRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewReconciliationRunRepository(db *sql.DB, log *logger.Logger) *ReconciliationRunRepository {
	return &ReconciliationRunRepository{db: db, logger: log}
}

func (r *ReconciliationRunRepository) Create(ctx context.Context, run *entities.ReconciliationRun) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "INSERT", Table: "reconciliation_runs"})
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, ran_at, mismatch_count, succeeded, failure_message)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.RanAt, run.MismatchCount, run.Succeeded, run.FailureMessage,
	)
	tracing.EndDBSpan(span, err, 1)
	if err != nil {
		r.logger.Error("failed to record reconciliation run", "error", err)
		return fmt.Errorf("record reconciliation run: %w", err)
	}
	return nil
}
