// Package dispatcher drains the two outbox queues and hands each due
// record to the outbound HTTP client, updating its status and backoff on
// the outcome.
package dispatcher

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/internal/domain/services/audit"
	"github.com/rail-service/integration-hub/pkg/httpclient"
	"github.com/rail-service/integration-hub/pkg/leader"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/metrics"
	"github.com/rail-service/integration-hub/pkg/tracing"
)

// Config controls the dispatcher's sweep cadence and batch size.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		BatchSize:    25,
	}
}

// Dispatcher is the single cooperative background task that drains both
// outbox queues. Only one instance should be actively draining at a time
// across a fleet; pkg/leader arbitrates that when elector is non-nil.
type Dispatcher struct {
	config   Config
	outbox   repositories.OutboxRepository
	operator *httpclient.Client
	rgs      *httpclient.Client
	auditSvc *audit.Service
	logger   *logger.Logger
	elector  *leader.Elector

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(config Config, outbox repositories.OutboxRepository, operator, rgs *httpclient.Client, auditSvc *audit.Service, log *logger.Logger, elector *leader.Elector) *Dispatcher {
	return &Dispatcher{
		config:   config,
		outbox:   outbox,
		operator: operator,
		rgs:      rgs,
		auditSvc: auditSvc,
		logger:   log,
		elector:  elector,
	}
}

// Start launches the dispatch loop in a background goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.loop(runCtx)

	d.logger.Info("dispatcher started", "poll_interval", d.config.PollInterval, "batch_size", d.config.BatchSize)
	return nil
}

// Shutdown stops the loop and waits up to timeout for the in-flight sweep
// to finish, implementing pkg/graceful's Shutdowner contract.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	if d.cancel != nil {
		d.cancel()
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("dispatcher shutdown complete")
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.elector != nil && !d.elector.IsLeader() {
				continue
			}
			d.sweep(ctx)
		}
	}
}

// sweep drains both queues once. A record-level failure is logged and
// never aborts the sweep; the next tick picks up whatever is still due.
func (d *Dispatcher) sweep(ctx context.Context) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SWEEP", Table: "outbox_records"})
	defer span.End()

	d.drainQueue(ctx, entities.OutboxQueueToOperator, d.operator)
	d.drainQueue(ctx, entities.OutboxQueueToRGS, d.rgs)
}

func (d *Dispatcher) drainQueue(ctx context.Context, queue entities.OutboxQueue, client *httpclient.Client) {
	now := time.Now().UTC()
	records, err := d.outbox.ClaimDue(ctx, queue, d.config.BatchSize, now)
	if err != nil {
		d.logger.Error("failed to claim due outbox records", "error", err, "queue", queue)
		return
	}

	for _, record := range records {
		if record.NextAttemptAt.After(now) {
			continue
		}
		d.dispatchOne(ctx, record, client)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, record *entities.OutboxRecord, client *httpclient.Client) {
	start := time.Now()
	resp, err := client.Do(ctx, http.MethodPost, record.TargetURL, record.Payload, map[string]string{
		"Content-Type": "application/json",
	})
	duration := time.Since(start)

	outcome := "sent"
	if err != nil || resp == nil || resp.StatusCode >= 500 {
		outcome = "failed"
	}
	metrics.OutboxDispatchedTotal.WithLabelValues(string(record.Queue), outcome).Inc()
	metrics.OutboxDispatchLatency.WithLabelValues(string(record.Queue)).Observe(duration.Seconds())

	if err == nil && resp != nil && resp.StatusCode < 500 {
		record.MarkSent()
		if markErr := d.outbox.MarkSent(ctx, record.ID); markErr != nil {
			d.logger.Error("failed to mark outbox record sent", "error", markErr, "id", record.ID)
			return
		}
		d.logger.Info("outbox record delivered", "id", record.ID, "queue", record.Queue, "ref_id", record.RefID, "status_code", resp.StatusCode)
		return
	}

	if err == nil {
		err = statusError(resp.StatusCode)
	}
	record.MarkFailed(err)
	exhausted := record.Exhausted()
	if markErr := d.outbox.MarkFailed(ctx, record.ID, err.Error(), record.NextAttemptAt, record.AttemptCount, exhausted); markErr != nil {
		d.logger.Error("failed to mark outbox record failed", "error", markErr, "id", record.ID)
		return
	}
	d.logger.Warn("outbox record dispatch failed", "id", record.ID, "queue", record.Queue, "ref_id", record.RefID, "attempt", record.AttemptCount, "next_attempt_at", record.NextAttemptAt, "exhausted", exhausted, "error", err)

	if correlationAuditable(record.CorrelationID) {
		_ = d.auditSvc.LogWebhook(ctx, record.CorrelationID, string(record.Queue), string(record.EventType))
	}
}

func correlationAuditable(id uuid.UUID) bool {
	return id != uuid.Nil
}

type httpStatusError struct {
	statusCode int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.statusCode)
}

func (e *httpStatusError) StatusCode() int {
	return e.statusCode
}

func statusError(statusCode int) error {
	return &httpStatusError{statusCode: statusCode}
}
