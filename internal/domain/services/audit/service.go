package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rail-service/integration-hub/internal/domain/entities"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"go.uber.org/zap"
)

// Context keys for audit data
type contextKey string

const (
	ContextKeyIPAddress contextKey = "audit_ip_address"
	ContextKeyUserAgent contextKey = "audit_user_agent"
	ContextKeyUserID    contextKey = "audit_user_id"
)

type Service struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

func NewService(repo repositories.AuditRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, userID uuid.UUID, action entities.AuditAction, resource string, resourceID *uuid.UUID, metadata map[string]interface{}) error {
	log := &entities.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  getStringFromContext(ctx, ContextKeyIPAddress),
		UserAgent:  getStringFromContext(ctx, ContextKeyUserAgent),
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Error("failed to create audit log",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("user_id", userID.String()),
		)
		return err
	}
	return nil
}

// systemActorID marks audit entries produced by the dispatcher or ingress
// path itself rather than by an admin caller. There is no user/session
// concept in the hub; every Transaction row identifies its own actor via
// RefID/CorrelationID, so the audit log's UserID column just needs a
// stable, queryable sentinel for non-admin writes.
var systemActorID = uuid.Nil

// LogWalletAction logs a processed debit/credit transaction
func (s *Service) LogWalletAction(ctx context.Context, transactionID uuid.UUID, refID string, direction entities.WalletAction, amountCents int64, status string) error {
	return s.Log(ctx, systemActorID, entities.AuditActionWalletAction, "transaction", &transactionID, map[string]interface{}{
		"ref_id":       refID,
		"direction":    string(direction),
		"amount_cents": amountCents,
		"status":       status,
	})
}

// LogWebhook logs an inbound webhook notification from either side
func (s *Service) LogWebhook(ctx context.Context, correlationID uuid.UUID, source string, eventType string) error {
	return s.Log(ctx, systemActorID, entities.AuditActionWebhook, "webhook", &correlationID, map[string]interface{}{
		"source":     source,
		"event_type": eventType,
	})
}

// LogAdminReplay logs an operator-triggered forced outbox replay
func (s *Service) LogAdminReplay(ctx context.Context, adminID uuid.UUID, outboxRecordID uuid.UUID, queue string) error {
	return s.Log(ctx, adminID, entities.AuditActionAdminReplay, "outbox_record", &outboxRecordID, map[string]interface{}{
		"queue": queue,
	})
}

// LogClearDB logs an operator-triggered database reset
func (s *Service) LogClearDB(ctx context.Context, adminID uuid.UUID, scope string) error {
	return s.Log(ctx, adminID, entities.AuditActionClearDB, "database", nil, map[string]interface{}{
		"scope": scope,
	})
}

// GetUserAuditLogs retrieves audit logs for a user
func (s *Service) GetUserAuditLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.AuditLog, int64, error) {
	filter := repositories.AuditLogFilter{
		UserID: &userID,
		Limit:  limit,
		Offset: offset,
	}

	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return logs, count, nil
}

// WithAuditContext adds audit context to the request context
func WithAuditContext(ctx context.Context, ipAddress, userAgent string, userID *uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, ContextKeyIPAddress, ipAddress)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	if userID != nil {
		ctx = context.WithValue(ctx, ContextKeyUserID, *userID)
	}
	return ctx
}

func getStringFromContext(ctx context.Context, key contextKey) string {
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}
