// Package httpclient is the hub's single outbound requester to the
// Operator and RGS peers: exponential backoff on 429/5xx, a non-blocking
// in-process rolling rate limiter, and a per-host circuit breaker.
package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/metrics"
)

// Config configures a Client's retry/rate-limit/circuit-breaker behavior.
type Config struct {
	MaxRetries         int
	BackoffSeconds     float64
	RateLimitPerMinute int
	Timeout            time.Duration
}

// Response is the result of a completed (possibly retried) call. A
// synthetic 429 from the rate limiter is returned here rather than as an
// error, matching how a real downstream 429 is handled.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Client is safe for concurrent use; it holds one rolling rate-limit
// window and one circuit breaker per downstream host.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger

	windowMu sync.Mutex
	window   []time.Time

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
}

// New builds a Client.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Do performs method against targetURL with the given body and headers,
// applying the rolling rate limiter, retry/backoff policy, and per-host
// circuit breaker described above. It returns a non-nil Response for every
// outcome except a permanent network failure after the retry budget is
// exhausted, which is reported as a DomainError instead.
func (c *Client) Do(ctx context.Context, method, targetURL string, body []byte, headers map[string]string) (*Response, error) {
	host := hostOf(targetURL)
	backoff := c.cfg.BackoffSeconds
	if backoff <= 0 {
		backoff = 1
	}

	for attempt := 0; ; attempt++ {
		if !c.allow() {
			metrics.RateLimitRejectionsTotal.WithLabelValues("httpclient").Inc()
			return &Response{
				StatusCode: http.StatusTooManyRequests,
				Headers:    http.Header{"Retry-After": []string{formatSeconds(backoff)}},
			}, nil
		}

		start := time.Now()
		resp, err := c.doOnce(ctx, host, method, targetURL, body, headers)
		metrics.OutboxDispatchLatency.WithLabelValues(host).Observe(time.Since(start).Seconds())

		if err != nil {
			if attempt >= c.cfg.MaxRetries {
				return nil, domainerrors.DownstreamUnavailableError(targetURL, err)
			}
			if !c.sleep(ctx, time.Duration(backoff*float64(time.Second))) {
				return nil, domainerrors.DownstreamUnavailableError(targetURL, ctx.Err())
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := backoff
			if ra := resp.Headers.Get("Retry-After"); ra != "" {
				if parsed, perr := strconv.ParseFloat(ra, 64); perr == nil {
					retryAfter = parsed
				}
			}
			if attempt >= c.cfg.MaxRetries {
				return resp, nil
			}
			if !c.sleep(ctx, time.Duration(retryAfter*float64(time.Second))) {
				return resp, nil
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode >= 500 {
			if attempt >= c.cfg.MaxRetries {
				return resp, nil
			}
			if !c.sleep(ctx, time.Duration(backoff*float64(time.Second))) {
				return resp, nil
			}
			backoff *= 2
			continue
		}

		return resp, nil
	}
}

func (c *Client) doOnce(ctx context.Context, host, method, targetURL string, body []byte, headers map[string]string) (*Response, error) {
	breaker := c.breakerFor(host)
	result, err := breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, targetURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &Response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerStateGauge.WithLabelValues(name).Set(float64(to))
			c.logger.Warn("circuit breaker state change", "target", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[host] = b
	return b
}

// allow implements the rolling 60-second window: prune timestamps older
// than 60s, then admit only if fewer than RateLimitPerMinute remain.
func (c *Client) allow() bool {
	if c.cfg.RateLimitPerMinute <= 0 {
		return true
	}
	c.windowMu.Lock()
	defer c.windowMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-60 * time.Second)
	kept := c.window[:0]
	for _, t := range c.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.window = kept

	if len(c.window) >= c.cfg.RateLimitPerMinute {
		return false
	}
	c.window = append(c.window, now)
	return true
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

func formatSeconds(s float64) string {
	return strconv.FormatInt(int64(s), 10)
}
