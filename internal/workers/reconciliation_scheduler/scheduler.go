// Package reconciliation_scheduler runs the reconciliation comparison on a
// cron schedule purely for operability; the on-demand CSV endpoint does
// its own comparison independent of this job's history.
package reconciliation_scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/internal/domain/services/reconciliation"
	"github.com/rail-service/integration-hub/pkg/logger"
)

type Scheduler struct {
	reconSvc *reconciliation.Service
	runRepo  repositories.ReconciliationRunRepository
	cron     *cron.Cron
	schedule string
	logger   *logger.Logger
}

func New(reconSvc *reconciliation.Service, runRepo repositories.ReconciliationRunRepository, schedule string, log *logger.Logger) *Scheduler {
	return &Scheduler{
		reconSvc: reconSvc,
		runRepo:  runRepo,
		cron:     cron.New(),
		schedule: schedule,
		logger:   log,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		s.runOnce(runCtx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("reconciliation scheduler started", "schedule", s.schedule)
	return nil
}

// Shutdown implements pkg/graceful's Shutdowner contract: it stops the cron
// and waits for in-flight jobs for at most timeout, returning nil either way.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(timeout):
	}
	s.logger.Info("reconciliation scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, mismatchCount, err := s.reconSvc.GenerateCSV(ctx)
	var failureMessage *string
	if err != nil {
		msg := err.Error()
		failureMessage = &msg
		s.logger.Error("scheduled reconciliation run failed", "error", err)
	}

	run := entities.NewReconciliationRun(mismatchCount, failureMessage)
	if createErr := s.runRepo.Create(ctx, run); createErr != nil {
		s.logger.Error("failed to persist reconciliation run record", "error", createErr)
	}
}
