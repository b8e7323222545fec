package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New("error", "test")
}

func TestClientDoReturnsResponseOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := New(Config{MaxRetries: 2, BackoffSeconds: 0.01}, newTestLogger())
	resp, err := c.Do(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestClientDoRetriesOn500ThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{MaxRetries: 2, BackoffSeconds: 0.01}, newTestLogger())
	resp, err := c.Do(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "want 200 after retry")
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestClientDoExhaustsRetriesOnPersistent500(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{MaxRetries: 2, BackoffSeconds: 0.01}, newTestLogger())
	resp, err := c.Do(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)
	require.NoError(t, err, "want a non-error 500 response once retries are exhausted")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts), "want 1 initial + 2 retries")
}

func TestClientDoReturnsDomainErrorOnConnectionFailure(t *testing.T) {
	c := New(Config{MaxRetries: 1, BackoffSeconds: 0.01}, newTestLogger())
	_, err := c.Do(context.Background(), http.MethodPost, "http://127.0.0.1:1", []byte(`{}`), nil)
	require.Error(t, err, "expected an error dialing an unreachable address")
	assert.True(t, domainerrors.IsDownstreamUnavailable(err), "expected a downstream-unavailable domain error, got %v", err)
}

func TestClientDoRateLimitsLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{MaxRetries: 0, RateLimitPerMinute: 1}, newTestLogger())

	first, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode, "want 429 from the local rate limiter")
}

func TestClientDoTripsCircuitBreakerAfterConsecutiveFailures(t *testing.T) {
	// Closing the listener immediately turns every dial into a connection
	// refusal, which is what the breaker (as opposed to a 5xx body) counts
	// as a failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	targetURL := server.URL
	server.Close()

	c := New(Config{MaxRetries: 0, BackoffSeconds: 0.001}, newTestLogger())

	for i := 0; i < 5; i++ {
		_, err := c.Do(context.Background(), http.MethodGet, targetURL, nil, nil)
		require.Error(t, err, "call %d: expected an error dialing a closed listener", i)
	}

	_, err := c.Do(context.Background(), http.MethodGet, targetURL, nil, nil)
	require.Error(t, err, "expected the breaker to reject the next call once it has tripped open")
	assert.True(t, domainerrors.IsDownstreamUnavailable(err), "expected an open-breaker call to surface as downstream-unavailable, got %v", err)
}

func TestClientDoRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{MaxRetries: 1, BackoffSeconds: 5}, newTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, http.MethodGet, server.URL, nil, nil)
	require.Error(t, err, "expected an error once the request itself exceeds the context deadline")
	assert.True(t, domainerrors.IsDownstreamUnavailable(err), "expected a downstream-unavailable domain error, got %v", err)
}
