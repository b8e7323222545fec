package dispatcher

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/internal/domain/services/audit"
	"github.com/rail-service/integration-hub/pkg/httpclient"
	"github.com/rail-service/integration-hub/pkg/logger"
)

type mockOutboxRepo struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*entities.OutboxRecord
	sent      []uuid.UUID
	failed    []uuid.UUID
	claimHits int
}

func newMockOutboxRepo(records ...*entities.OutboxRecord) *mockOutboxRepo {
	m := &mockOutboxRepo{records: map[uuid.UUID]*entities.OutboxRecord{}}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *mockOutboxRepo) Enqueue(ctx context.Context, record *entities.OutboxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
	return nil
}

func (m *mockOutboxRepo) EnqueueTx(ctx context.Context, dbTx *sql.Tx, record *entities.OutboxRecord) error {
	return m.Enqueue(ctx, record)
}

func (m *mockOutboxRepo) ClaimDue(ctx context.Context, queue entities.OutboxQueue, limit int, now time.Time) ([]*entities.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimHits++

	var out []*entities.OutboxRecord
	for _, r := range m.records {
		if r.Queue != queue {
			continue
		}
		if !r.DueForAttempt(now) {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockOutboxRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	if r, ok := m.records[id]; ok {
		r.Status = entities.OutboxStatusSent
	}
	return nil
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttemptAt time.Time, attemptCount int, exhausted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, id)
	return nil
}

func (m *mockOutboxRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

func (m *mockOutboxRepo) List(ctx context.Context, filter repositories.OutboxFilter) ([]*entities.OutboxRecord, error) {
	return nil, nil
}

func (m *mockOutboxRepo) Count(ctx context.Context, filter repositories.OutboxFilter) (int64, error) {
	return 0, nil
}

func (m *mockOutboxRepo) ForceReplay(ctx context.Context, id uuid.UUID) error {
	return nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	created []*entities.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, log *entities.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, log)
	return nil
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) Count(ctx context.Context, filter repositories.AuditLogFilter) (int64, error) {
	return 0, nil
}

func (m *mockAuditRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func newTestHTTPClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{MaxRetries: 0}, logger.New("error", "test"))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDispatcherMarksRecordSentOnSuccess(t *testing.T) {
	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer operatorServer.Close()

	record := entities.NewOutboxRecord(entities.OutboxQueueToOperator, entities.WalletActionDebit, uuid.New(), "ref-1", operatorServer.URL, []byte(`{}`), 3)
	repo := newMockOutboxRepo(record)
	auditRepo := &mockAuditRepo{}
	auditSvc := audit.NewService(auditRepo, zap.NewNop())

	d := New(Config{PollInterval: 20 * time.Millisecond, BatchSize: 10}, repo, newTestHTTPClient(), newTestHTTPClient(), auditSvc, logger.New("error", "test"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Shutdown(time.Second)

	waitFor(t, time.Second, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.sent) == 1
	})

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, entities.OutboxStatusSent, repo.records[record.ID].Status)
	assert.Equal(t, 1, repo.records[record.ID].AttemptCount)
	assert.Empty(t, repo.failed)
}

func TestDispatcherMarksRecordFailedOnServerError(t *testing.T) {
	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer operatorServer.Close()

	correlationID := uuid.New()
	record := entities.NewOutboxRecord(entities.OutboxQueueToOperator, entities.WalletActionCredit, correlationID, "ref-2", operatorServer.URL, []byte(`{}`), 3)
	repo := newMockOutboxRepo(record)
	auditRepo := &mockAuditRepo{}
	auditSvc := audit.NewService(auditRepo, zap.NewNop())

	d := New(Config{PollInterval: 20 * time.Millisecond, BatchSize: 10}, repo, newTestHTTPClient(), newTestHTTPClient(), auditSvc, logger.New("error", "test"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Shutdown(time.Second)

	waitFor(t, time.Second, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.failed) == 1
	})

	repo.mu.Lock()
	rec := repo.records[record.ID]
	repo.mu.Unlock()
	assert.Equal(t, 1, rec.AttemptCount)
	assert.False(t, rec.NextAttemptAt.Before(time.Now().UTC()), "expected next attempt to be scheduled in the future after a failure")

	waitFor(t, time.Second, func() bool { return auditRepo.count() == 1 })
}

func TestDispatcherSkipsAuditForSystemGeneratedRecords(t *testing.T) {
	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer operatorServer.Close()

	record := entities.NewOutboxRecord(entities.OutboxQueueToOperator, entities.WalletActionCredit, uuid.Nil, "ref-3", operatorServer.URL, []byte(`{}`), 3)
	repo := newMockOutboxRepo(record)
	auditRepo := &mockAuditRepo{}
	auditSvc := audit.NewService(auditRepo, zap.NewNop())

	d := New(Config{PollInterval: 20 * time.Millisecond, BatchSize: 10}, repo, newTestHTTPClient(), newTestHTTPClient(), auditSvc, logger.New("error", "test"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Shutdown(time.Second)

	waitFor(t, time.Second, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.failed) == 1
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, auditRepo.count(), "expected no audit entries for a nil correlation id")
}

func TestDispatcherShutdownStopsSweeping(t *testing.T) {
	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer operatorServer.Close()

	record := entities.NewOutboxRecord(entities.OutboxQueueToOperator, entities.WalletActionDebit, uuid.New(), "ref-4", operatorServer.URL, []byte(`{}`), 3)
	repo := newMockOutboxRepo(record)
	auditSvc := audit.NewService(&mockAuditRepo{}, zap.NewNop())

	d := New(Config{PollInterval: 20 * time.Millisecond, BatchSize: 10}, repo, newTestHTTPClient(), newTestHTTPClient(), auditSvc, logger.New("error", "test"), nil)

	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	waitFor(t, time.Second, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.sent) == 1
	})

	require.NoError(t, d.Shutdown(time.Second))

	repo.mu.Lock()
	hitsBefore := repo.claimHits
	repo.mu.Unlock()
	time.Sleep(100 * time.Millisecond)
	repo.mu.Lock()
	hitsAfter := repo.claimHits
	repo.mu.Unlock()
	assert.Equal(t, hitsBefore, hitsAfter, "expected no further sweeps after shutdown")
}
