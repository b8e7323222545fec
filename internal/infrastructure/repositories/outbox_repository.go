package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/tracing"
)

// OutboxRepository persists outbox records for both delivery directions in
// a single table distinguished by the queue column.
type OutboxRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewOutboxRepository(db *sql.DB, log *logger.Logger) *OutboxRepository {
	return &OutboxRepository{db: db, logger: log}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, record *entities.OutboxRecord) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "INSERT", Table: "outbox_records"})
	defer span.End()

	query := `
		INSERT INTO outbox_records (
			id, queue, event_type, correlation_id, ref_id, target_url, payload,
			status, attempt_count, max_retries, last_error, next_attempt_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		string(record.Queue),
		string(record.EventType),
		record.CorrelationID,
		record.RefID,
		record.TargetURL,
		[]byte(record.Payload),
		string(record.Status),
		record.AttemptCount,
		record.MaxRetries,
		record.LastError,
		record.NextAttemptAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	tracing.EndDBSpan(span, err, 1)
	if err != nil {
		r.logger.Error("failed to enqueue outbox record", "error", err, "ref_id", record.RefID, "queue", record.Queue)
		return fmt.Errorf("enqueue outbox record: %w", err)
	}
	return nil
}

// EnqueueTx is Enqueue run against an open transaction.
func (r *OutboxRepository) EnqueueTx(ctx context.Context, dbTx *sql.Tx, record *entities.OutboxRecord) error {
	_, err := dbTx.ExecContext(ctx, `
		INSERT INTO outbox_records (
			id, queue, event_type, correlation_id, ref_id, target_url, payload,
			status, attempt_count, max_retries, last_error, next_attempt_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`,
		record.ID,
		string(record.Queue),
		string(record.EventType),
		record.CorrelationID,
		record.RefID,
		record.TargetURL,
		[]byte(record.Payload),
		string(record.Status),
		record.AttemptCount,
		record.MaxRetries,
		record.LastError,
		record.NextAttemptAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to enqueue outbox record in tx", "error", err, "ref_id", record.RefID, "queue", record.Queue)
		return fmt.Errorf("enqueue outbox record: %w", err)
	}
	return nil
}

// ClaimDue locks up to limit due rows from queue with FOR UPDATE SKIP LOCKED
// so that a leader handoff never lets two dispatcher instances claim the
// same record. The attempt_count <= max_retries guard on the failed branch
// is load-bearing: MarkFailed advances next_attempt_at on every failure,
// so once the retry budget is exhausted the row still carries a
// next_attempt_at that will eventually elapse, and the guard is what
// actually stops it from being reclaimed forever.
func (r *OutboxRepository) ClaimDue(ctx context.Context, queue entities.OutboxQueue, limit int, now time.Time) ([]*entities.OutboxRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "outbox_records"})
	defer span.End()

	query := `
		SELECT
			id, queue, event_type, correlation_id, ref_id, target_url, payload,
			status, attempt_count, max_retries, last_error, next_attempt_at,
			created_at, updated_at
		FROM outbox_records
		WHERE queue = $1
		  AND (
		        status = 'pending'
		        OR (status = 'failed' AND attempt_count <= max_retries AND next_attempt_at <= $2)
		      )
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, string(queue), now, limit)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		r.logger.Error("failed to claim due outbox records", "error", err, "queue", queue)
		return nil, fmt.Errorf("claim due outbox records: %w", err)
	}
	defer rows.Close()

	var records []*entities.OutboxRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			r.logger.Error("failed to scan outbox record", "error", err)
			continue
		}
		records = append(records, record)
	}
	tracing.EndDBSpan(span, nil, int64(len(records)))
	return records, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "outbox_records"})
	defer span.End()

	result, err := r.db.ExecContext(ctx, `
		UPDATE outbox_records SET status = 'sent', attempt_count = attempt_count + 1, last_error = NULL, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	rows, _ := rowsAffectedOf(result)
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		r.logger.Error("failed to mark outbox record sent", "error", err, "id", id)
		return fmt.Errorf("mark outbox record sent: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox record not found: %s", id)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttemptAt time.Time, attemptCount int, exhausted bool) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "outbox_records"})
	defer span.End()

	result, err := r.db.ExecContext(ctx, `
		UPDATE outbox_records
		SET status = 'failed', attempt_count = $1, last_error = $2, next_attempt_at = $3, updated_at = $4
		WHERE id = $5`,
		attemptCount, errMsg, nextAttemptAt, time.Now().UTC(), id,
	)
	rows, _ := rowsAffectedOf(result)
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		r.logger.Error("failed to mark outbox record failed", "error", err, "id", id)
		return fmt.Errorf("mark outbox record failed: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox record not found: %s", id)
	}
	if exhausted {
		r.logger.Warn("outbox record exhausted retry budget", "id", id, "attempt_count", attemptCount)
	}
	return nil
}

func (r *OutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.OutboxRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "outbox_records"})
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, queue, event_type, correlation_id, ref_id, target_url, payload,
			status, attempt_count, max_retries, last_error, next_attempt_at,
			created_at, updated_at
		FROM outbox_records WHERE id = $1`, id)

	record, err := r.scanRecord(row)
	if err == sql.ErrNoRows {
		tracing.EndDBSpan(span, err, 0)
		return nil, fmt.Errorf("outbox record not found: %s", id)
	}
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		r.logger.Error("failed to get outbox record", "error", err, "id", id)
		return nil, fmt.Errorf("get outbox record: %w", err)
	}
	tracing.EndDBSpan(span, nil, 1)
	return record, nil
}

func (r *OutboxRepository) List(ctx context.Context, filter repositories.OutboxFilter) ([]*entities.OutboxRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "outbox_records"})
	defer span.End()

	where, args := buildOutboxWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT
			id, queue, event_type, correlation_id, ref_id, target_url, payload,
			status, attempt_count, max_retries, last_error, next_attempt_at,
			created_at, updated_at
		FROM outbox_records
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		r.logger.Error("failed to list outbox records", "error", err)
		return nil, fmt.Errorf("list outbox records: %w", err)
	}
	defer rows.Close()

	var records []*entities.OutboxRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			r.logger.Error("failed to scan outbox record", "error", err)
			continue
		}
		records = append(records, record)
	}
	tracing.EndDBSpan(span, nil, int64(len(records)))
	return records, nil
}

func (r *OutboxRepository) Count(ctx context.Context, filter repositories.OutboxFilter) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "outbox_records"})
	defer span.End()

	where, args := buildOutboxWhere(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM outbox_records %s`, where)

	var count int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	tracing.EndDBSpan(span, err, count)
	if err != nil {
		r.logger.Error("failed to count outbox records", "error", err)
		return 0, fmt.Errorf("count outbox records: %w", err)
	}
	return count, nil
}

// ForceReplay resets a record to pending and due immediately, regardless of
// its current status or retry budget, for the admin forced-replay endpoint.
func (r *OutboxRepository) ForceReplay(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "outbox_records"})
	defer span.End()

	result, err := r.db.ExecContext(ctx, `
		UPDATE outbox_records
		SET status = 'pending', attempt_count = 0, last_error = NULL, next_attempt_at = $1, updated_at = $1
		WHERE id = $2`,
		time.Now().UTC(), id,
	)
	rows, _ := rowsAffectedOf(result)
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		r.logger.Error("failed to force-replay outbox record", "error", err, "id", id)
		return fmt.Errorf("force-replay outbox record: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox record not found: %s", id)
	}
	return nil
}

func buildOutboxWhere(filter repositories.OutboxFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if filter.Queue != nil {
		args = append(args, string(*filter.Queue))
		clauses = append(clauses, fmt.Sprintf("queue = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func rowsAffectedOf(result sql.Result) (int64, error) {
	if result == nil {
		return 0, nil
	}
	return result.RowsAffected()
}

// scanRecord shares scan logic between *sql.Row and *sql.Rows.
func (r *OutboxRepository) scanRecord(scanner interface {
	Scan(dest ...interface{}) error
}) (*entities.OutboxRecord, error) {
	var record entities.OutboxRecord
	var queue, eventType, status string
	var payload []byte

	err := scanner.Scan(
		&record.ID,
		&queue,
		&eventType,
		&record.CorrelationID,
		&record.RefID,
		&record.TargetURL,
		&payload,
		&status,
		&record.AttemptCount,
		&record.MaxRetries,
		&record.LastError,
		&record.NextAttemptAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Queue = entities.OutboxQueue(queue)
	record.EventType = entities.WalletAction(eventType)
	record.Status = entities.OutboxStatus(status)
	record.Payload = payload

	return &record, nil
}
