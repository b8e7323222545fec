// Package di assembles the hub's repositories, services, handlers, and
// background workers into one Container: built once in cmd/main.go, torn
// down through pkg/graceful.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/integration-hub/internal/api/handlers"
	"github.com/rail-service/integration-hub/internal/domain/services/audit"
	"github.com/rail-service/integration-hub/internal/domain/services/reconciliation"
	"github.com/rail-service/integration-hub/internal/infrastructure/cache"
	"github.com/rail-service/integration-hub/internal/infrastructure/config"
	"github.com/rail-service/integration-hub/internal/infrastructure/repositories"
	"github.com/rail-service/integration-hub/internal/workers/dispatcher"
	"github.com/rail-service/integration-hub/internal/workers/reconciliation_scheduler"
	"github.com/rail-service/integration-hub/pkg/httpclient"
	"github.com/rail-service/integration-hub/pkg/idempotency"
	"github.com/rail-service/integration-hub/pkg/leader"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// Container holds every wired dependency the hub needs; cmd/main.go touches
// only this type.
type Container struct {
	Config *config.Config
	DB     *sql.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	TransactionRepo       *repositories.TransactionRepository
	OutboxRepo            *repositories.OutboxRepository
	IdempotencyRepo       *repositories.IdempotencyRepository
	AuditRepo             *repositories.AuditRepository
	ReconciliationRunRepo *repositories.ReconciliationRunRepository

	OperatorClient *httpclient.Client
	RGSClient      *httpclient.Client
	RedisClient    cache.RedisClient

	AuditService         *audit.Service
	ReconciliationService *reconciliation.Service

	TieredRateLimiter *ratelimit.TieredLimiter

	WalletHandlers          *handlers.WalletHandlers
	WebhookHandlers         *handlers.WebhookHandlers
	AdminHandlers           *handlers.AdminHandlers
	ReconciliationHandlers  *handlers.ReconciliationHandlers

	Dispatcher           *dispatcher.Dispatcher
	ReconciliationSched  *reconciliation_scheduler.Scheduler
	Elector              *leader.Elector
}

// NewContainer builds every dependency in layered order: repositories,
// external clients, domain services, handlers, then background workers.
func NewContainer(cfg *config.Config, db *sql.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	c := &Container{
		Config: cfg,
		DB:     db,
		Logger: log,
		ZapLog: zapLog,
	}

	c.TransactionRepo = repositories.NewTransactionRepository(db, log)
	c.OutboxRepo = repositories.NewOutboxRepository(db, log)
	c.IdempotencyRepo = repositories.NewIdempotencyRepository(db, zapLog)
	c.AuditRepo = repositories.NewAuditRepository(db)
	c.ReconciliationRunRepo = repositories.NewReconciliationRunRepository(db, log)

	c.AuditService = audit.NewService(c.AuditRepo, zapLog)

	c.OperatorClient = httpclient.New(httpclient.Config{
		MaxRetries:         cfg.Retry.MaxRetries,
		BackoffSeconds:     cfg.Retry.RetryBackoffSeconds,
		RateLimitPerMinute: cfg.Retry.RateLimitPerMinute,
		Timeout:            time.Duration(cfg.Operator.TimeoutSeconds) * time.Second,
	}, log)
	c.RGSClient = httpclient.New(httpclient.Config{
		MaxRetries:         cfg.Retry.MaxRetries,
		BackoffSeconds:     cfg.Retry.RetryBackoffSeconds,
		RateLimitPerMinute: cfg.Retry.RateLimitPerMinute,
		Timeout:            time.Duration(cfg.RGS.TimeoutSeconds) * time.Second,
	}, log)

	if cfg.Redis.URL != "" || cfg.Redis.Host != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLog)
		if err != nil {
			log.Warn("redis unavailable, tiered ingress rate limiting disabled", "error", err)
		} else {
			c.RedisClient = redisClient
			c.TieredRateLimiter = ratelimit.NewTieredLimiter(redisClient.Client(), ratelimit.TieredConfig{
				GlobalLimit:  int64(cfg.Retry.RateLimitPerMinute) * 10,
				GlobalWindow: time.Minute,
				IPLimit:      int64(cfg.Server.RateLimitPerMin),
				IPWindow:     time.Minute,
				EndpointLimits: map[string]ratelimit.EndpointLimit{
					"wallet":            {Limit: int64(cfg.Server.RateLimitPerMin), Window: time.Minute},
					"webhooks_incoming": {Limit: int64(cfg.Server.RateLimitPerMin) * 2, Window: time.Minute},
				},
			}, zapLog)
		}
	}

	operatorTransactionListURL := fmt.Sprintf("%s/v2/transactions", cfg.Operator.BaseURL)
	c.ReconciliationService = reconciliation.NewService(c.RGSClient, c.OperatorClient, cfg.RGS.WebhookURL, operatorTransactionListURL, log)

	c.WalletHandlers = handlers.NewWalletHandlers(
		db, c.TransactionRepo, c.OutboxRepo, c.AuditService,
		cfg.SupportedCurrencies, cfg.Operator.BaseURL, cfg.Retry.MaxRetries, log,
	)
	c.WebhookHandlers = handlers.NewWebhookHandlers(
		db, c.TransactionRepo, c.OutboxRepo, c.AuditService,
		cfg.RGS.WebhookURL, cfg.Retry.MaxRetries, log,
	)
	c.AdminHandlers = handlers.NewAdminHandlers(db, c.OutboxRepo, c.AuditService, log)
	c.ReconciliationHandlers = handlers.NewReconciliationHandlers(c.ReconciliationService, log)

	c.Elector = leader.New(db, "integration_hub_dispatcher", dispatcher.DefaultConfig().PollInterval, log)

	c.Dispatcher = dispatcher.New(
		dispatcher.DefaultConfig(),
		c.OutboxRepo, c.OperatorClient, c.RGSClient, c.AuditService, log, c.Elector,
	)

	if cfg.Reconciliation.Enabled {
		c.ReconciliationSched = reconciliation_scheduler.New(
			c.ReconciliationService, c.ReconciliationRunRepo, cfg.Reconciliation.Cron, log,
		)
	}

	return c, nil
}

// IdempotencyMiddleware wraps the hub's idempotency cache for the wallet
// ingress group.
func (c *Container) IdempotencyMiddleware() gin.HandlerFunc {
	return idempotency.Middleware(c.IdempotencyRepo, c.ZapLog)
}

// Start brings up every background worker. The HTTP server itself is
// started by cmd/main.go once routes are registered.
func (c *Container) Start(ctx context.Context) error {
	if c.Elector != nil {
		if err := c.Elector.Start(ctx); err != nil {
			return fmt.Errorf("start leader elector: %w", err)
		}
	}
	if err := c.Dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if c.ReconciliationSched != nil {
		if err := c.ReconciliationSched.Start(ctx); err != nil {
			return fmt.Errorf("start reconciliation scheduler: %w", err)
		}
	}
	return nil
}
