package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/internal/domain/services/audit"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/security"
)

// OutboxRecordResponse is the admin-facing view of a single outbox row.
type OutboxRecordResponse struct {
	ID            string  `json:"id"`
	Queue         string  `json:"queue"`
	EventType     string  `json:"eventType"`
	CorrelationID string  `json:"correlationId"`
	RefID         string  `json:"refId"`
	TargetURL     string  `json:"targetUrl"`
	Status        string  `json:"status"`
	AttemptCount  int     `json:"attemptCount"`
	MaxRetries    int     `json:"maxRetries"`
	LastError     *string `json:"lastError,omitempty"`
	NextAttemptAt string  `json:"nextAttemptAt"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// AdminHandlers exposes outbox visibility and operator controls: listing,
// forced replay, and a destructive full clear for sandbox deployments.
type AdminHandlers struct {
	db         *sql.DB
	outboxRepo repositories.OutboxRepository
	auditSvc   *audit.Service
	logger     *logger.Logger
}

func NewAdminHandlers(db *sql.DB, outboxRepo repositories.OutboxRepository, auditSvc *audit.Service, log *logger.Logger) *AdminHandlers {
	return &AdminHandlers{db: db, outboxRepo: outboxRepo, auditSvc: auditSvc, logger: log}
}

// HandleListOutbox serves GET /webhooks/outbox.
func (h *AdminHandlers) HandleListOutbox(c *gin.Context) {
	filter := repositories.OutboxFilter{Limit: 50}

	if q := c.Query("queue"); q != "" {
		queue := entities.OutboxQueue(q)
		filter.Queue = &queue
	}
	if s := c.Query("status"); s != "" {
		status := entities.OutboxStatus(s)
		filter.Status = &status
	}
	if lim := c.Query("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if off := c.Query("offset"); off != "" {
		if n, err := strconv.Atoi(off); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	ctx := c.Request.Context()
	records, err := h.outboxRepo.List(ctx, filter)
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to list outbox records", err))
		return
	}
	count, err := h.outboxRepo.Count(ctx, filter)
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to count outbox records", err))
		return
	}

	out := make([]OutboxRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, OutboxRecordResponse{
			ID:            r.ID.String(),
			Queue:         string(r.Queue),
			EventType:     string(r.EventType),
			CorrelationID: r.CorrelationID.String(),
			RefID:         r.RefID,
			TargetURL:     r.TargetURL,
			Status:        string(r.Status),
			AttemptCount:  r.AttemptCount,
			MaxRetries:    r.MaxRetries,
			LastError:     maskLastError(r.LastError),
			NextAttemptAt: r.NextAttemptAt.Format(timeLayout),
			CreatedAt:     r.CreatedAt.Format(timeLayout),
			UpdatedAt:     r.UpdatedAt.Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{"records": out, "total": count})
}

// HandleReplay serves POST /admin/replay/:queue/:recordId.
func (h *AdminHandlers) HandleReplay(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "recordId must be a valid uuid")
		return
	}

	ctx := c.Request.Context()
	record, err := h.outboxRepo.GetByID(ctx, recordID)
	if err != nil {
		SendDomainError(c, domainerrors.NotFoundError("outbox_record"))
		return
	}

	if err := h.outboxRepo.ForceReplay(ctx, recordID); err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to replay outbox record", err))
		return
	}

	_ = h.auditSvc.LogAdminReplay(ctx, uuid.Nil, recordID, string(record.Queue))

	c.JSON(http.StatusOK, gin.H{"status": "replayed", "id": recordID.String()})
}

// HandleClearDB serves POST /admin/clear-db. Destructive, bearer-gated at
// the route level, intended only for the sandbox/test deployments this hub
// fronts for integration testing.
func (h *AdminHandlers) HandleClearDB(c *gin.Context) {
	ctx := c.Request.Context()

	_, err := h.db.ExecContext(ctx, `TRUNCATE TABLE transactions, idempotency_keys, outbox_records RESTART IDENTITY CASCADE`)
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to clear database", err))
		return
	}

	_ = h.auditSvc.LogClearDB(ctx, uuid.Nil, "full")

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// maskLastError scrubs a dispatch failure message before it reaches the
// admin API: a downstream 5xx body can echo back whatever it was sent,
// including the signature/bearer headers the hub attached to the request.
func maskLastError(errMsg *string) *string {
	if errMsg == nil {
		return nil
	}
	masked := security.MaskString(*errMsg)
	return &masked
}
