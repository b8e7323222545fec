package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(maxRetries int) *OutboxRecord {
	return NewOutboxRecord(OutboxQueueToOperator, WalletActionDebit, uuid.New(), "ref-1", "http://operator.test/x", []byte(`{}`), maxRetries)
}

func TestNewOutboxRecordDefaults(t *testing.T) {
	r := newTestRecord(3)
	assert.Equal(t, OutboxStatusPending, r.Status)
	assert.Equal(t, 0, r.AttemptCount)
	assert.False(t, r.NextAttemptAt.After(time.Now().UTC()), "a freshly created record should be immediately due")
}

func TestOutboxRecordMarkSent(t *testing.T) {
	r := newTestRecord(3)
	r.MarkSent()
	assert.Equal(t, OutboxStatusSent, r.Status)
	assert.Equal(t, 1, r.AttemptCount, "a successful delivery is still a delivery attempt")
}

func TestOutboxRecordMarkFailedAdvancesBackoff(t *testing.T) {
	r := newTestRecord(3)
	before := r.NextAttemptAt

	r.MarkFailed(errors.New("connection refused"))
	assert.Equal(t, OutboxStatusFailed, r.Status)
	assert.Equal(t, 1, r.AttemptCount)
	require.NotNil(t, r.LastError)
	assert.Equal(t, "connection refused", *r.LastError)
	assert.True(t, r.NextAttemptAt.After(before), "next attempt should move forward after a failure")
}

func TestOutboxRecordExhausted(t *testing.T) {
	r := newTestRecord(2)
	for i := 0; i < 2; i++ {
		r.MarkFailed(errors.New("boom"))
		assert.False(t, r.Exhausted(), "should not be exhausted after %d attempts with max 2", i+1)
	}
	r.MarkFailed(errors.New("boom"))
	assert.True(t, r.Exhausted(), "expected record to be exhausted after exceeding max retries")
}

func TestOutboxRecordDueForAttempt(t *testing.T) {
	r := newTestRecord(1)
	now := time.Now().UTC()
	assert.True(t, r.DueForAttempt(now), "a pending record should be due immediately")

	r.MarkSent()
	assert.False(t, r.DueForAttempt(now), "a sent record should never be due")

	r2 := newTestRecord(1)
	r2.MarkFailed(errors.New("boom"))
	assert.False(t, r2.DueForAttempt(now), "a record with a future backoff window should not be due yet")
	assert.True(t, r2.DueForAttempt(r2.NextAttemptAt.Add(time.Second)), "the record should become due once its backoff window elapses")

	r2.MarkFailed(errors.New("boom again"))
	assert.False(t, r2.DueForAttempt(r2.NextAttemptAt.Add(time.Hour)), "an exhausted record should never be due again")
}
