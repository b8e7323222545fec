package reconciliation_scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/pkg/httpclient"
	"github.com/rail-service/integration-hub/pkg/logger"

	"github.com/rail-service/integration-hub/internal/domain/services/reconciliation"
)

type mockRunRepo struct {
	runs []*entities.ReconciliationRun
}

func (m *mockRunRepo) Create(ctx context.Context, run *entities.ReconciliationRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func newTestClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{MaxRetries: 0}, logger.New("error", "test"))
}

func TestRunOnceRecordsSuccessfulRun(t *testing.T) {
	rgsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"refId":"ref-1","correlationId":"c-1","event":"debit","amountCents":500}]`))
	}))
	defer rgsServer.Close()

	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer operatorServer.Close()

	reconSvc := reconciliation.NewService(newTestClient(), newTestClient(), rgsServer.URL, operatorServer.URL, logger.New("error", "test"))
	runRepo := &mockRunRepo{}
	sched := New(reconSvc, runRepo, "@every 1h", logger.New("error", "test"))

	sched.runOnce(context.Background())

	require.Len(t, runRepo.runs, 1)
	run := runRepo.runs[0]
	assert.True(t, run.Succeeded, "failure_message=%v", run.FailureMessage)
	assert.Equal(t, 1, run.MismatchCount)
}

func TestRunOnceRecordsFailedRun(t *testing.T) {
	rgsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rgsServer.Close()

	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer operatorServer.Close()

	reconSvc := reconciliation.NewService(newTestClient(), newTestClient(), rgsServer.URL, operatorServer.URL, logger.New("error", "test"))
	runRepo := &mockRunRepo{}
	sched := New(reconSvc, runRepo, "@every 1h", logger.New("error", "test"))

	sched.runOnce(context.Background())

	require.Len(t, runRepo.runs, 1)
	run := runRepo.runs[0]
	assert.False(t, run.Succeeded, "expected run to be marked failed")
	assert.NotNil(t, run.FailureMessage, "expected a failure message to be recorded")
}
