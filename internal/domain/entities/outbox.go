package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxQueue distinguishes the two delivery directions the dispatcher
// drains. Both queues share the same record shape and state machine.
type OutboxQueue string

const (
	OutboxQueueToOperator OutboxQueue = "to_operator"
	OutboxQueueToRGS      OutboxQueue = "to_rgs"
)

// OutboxStatus is the delivery state of a single outbox record.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxRecord is a single queued delivery attempt against either the
// Operator or RGS endpoint. Queue identity is carried on the record so both
// variants can share one repository implementation and one table shape.
type OutboxRecord struct {
	ID            uuid.UUID
	Queue         OutboxQueue
	EventType     WalletAction
	CorrelationID uuid.UUID
	RefID         string
	TargetURL     string
	Payload       json.RawMessage
	Status        OutboxStatus
	AttemptCount  int
	MaxRetries    int
	LastError     *string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxRecord creates a record ready for immediate dispatch.
func NewOutboxRecord(queue OutboxQueue, eventType WalletAction, correlationID uuid.UUID, refID, targetURL string, payload json.RawMessage, maxRetries int) *OutboxRecord {
	now := time.Now().UTC()
	return &OutboxRecord{
		ID:            uuid.New(),
		Queue:         queue,
		EventType:     eventType,
		CorrelationID: correlationID,
		RefID:         refID,
		TargetURL:     targetURL,
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    maxRetries,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkSent transitions the record to its terminal success state. AttemptCount
// advances here too: it counts every delivery attempt, not just failures.
func (r *OutboxRecord) MarkSent() {
	r.AttemptCount++
	r.Status = OutboxStatusSent
	r.UpdatedAt = time.Now().UTC()
}

// MarkFailed records a failed attempt and schedules the next one at
// now + 2^attemptCount seconds. The next-attempt time advances on every
// failure, including once AttemptCount exceeds MaxRetries, so it eventually
// comes due again; ClaimDue's attempt_count <= max_retries guard is what
// actually stops the dispatcher from reclaiming it, not this timestamp.
func (r *OutboxRecord) MarkFailed(err error) {
	r.AttemptCount++
	msg := err.Error()
	r.LastError = &msg
	r.Status = OutboxStatusFailed
	r.UpdatedAt = time.Now().UTC()
	r.NextAttemptAt = time.Now().UTC().Add(time.Duration(1<<uint(r.AttemptCount)) * time.Second)
}

// Exhausted reports whether the retry budget has been spent; the dispatcher
// stops scheduling further attempts once this is true.
func (r *OutboxRecord) Exhausted() bool {
	return r.AttemptCount > r.MaxRetries
}

// DueForAttempt reports whether the dispatcher should claim this record on
// its current sweep: either it has never been attempted, or it failed and
// its backoff window has elapsed.
func (r *OutboxRecord) DueForAttempt(now time.Time) bool {
	if r.Status == OutboxStatusSent {
		return false
	}
	if r.Status == OutboxStatusFailed && r.Exhausted() {
		return false
	}
	return !r.NextAttemptAt.After(now)
}
