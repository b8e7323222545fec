package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/internal/domain/services/audit"
	"github.com/rail-service/integration-hub/internal/infrastructure/database"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/metrics"
)

// IncomingWebhookRequest is the Operator's callback body once it has
// actioned a wallet movement the hub forwarded to it. Amount and balance
// travel as units on the wire, same as every other Operator-facing
// contract; cents only exist once they cross into the hub's own ledger.
type IncomingWebhookRequest struct {
	RefID         string   `json:"refId" binding:"required"`
	CorrelationID string   `json:"correlationId" binding:"required"`
	Event         string   `json:"event" binding:"required"`
	Amount        float64  `json:"amount" binding:"required"`
	Currency      string   `json:"currency" binding:"required"`
	Balance       *float64 `json:"balance"`
	Reason        *string  `json:"reason"`
}

// rgsEventPayload is the normalized shape forwarded on to RGS: amounts in
// cents, direction expressed as the hub's own wallet-action vocabulary.
type rgsEventPayload struct {
	PlayerID      string  `json:"playerId"`
	AmountCents   int64   `json:"amountCents"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	Event         string  `json:"event"`
	RefID         string  `json:"refId"`
	CorrelationID string  `json:"correlationId"`
	BalanceCents  *int64  `json:"balanceCents"`
	Reason        *string `json:"reason"`
}

// WebhookHandlers handles the Operator-to-hub correlation callback.
type WebhookHandlers struct {
	db              *sql.DB
	transactionRepo repositories.TransactionRepository
	outboxRepo      repositories.OutboxRepository
	auditSvc        *audit.Service
	rgsWebhookURL   string
	maxRetries      int
	logger          *logger.Logger
}

func NewWebhookHandlers(
	db *sql.DB,
	transactionRepo repositories.TransactionRepository,
	outboxRepo repositories.OutboxRepository,
	auditSvc *audit.Service,
	rgsWebhookURL string,
	maxRetries int,
	log *logger.Logger,
) *WebhookHandlers {
	return &WebhookHandlers{
		db:              db,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		auditSvc:        auditSvc,
		rgsWebhookURL:   rgsWebhookURL,
		maxRetries:      maxRetries,
		logger:          log,
	}
}

// HandleIncoming serves POST /webhooks/incoming.
func (h *WebhookHandlers) HandleIncoming(c *gin.Context) {
	var req IncomingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, err.Error())
		return
	}

	correlationID, err := uuid.Parse(req.CorrelationID)
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "correlationId must be a valid uuid")
		return
	}

	direction, ok := entities.WalletActionFromOperatorVerb(req.Event)
	if !ok {
		SendBadRequest(c, ErrCodeInvalidRequest, fmt.Sprintf("unrecognized event %q", req.Event))
		return
	}

	ctx := c.Request.Context()

	tx, err := h.transactionRepo.GetByCorrelationID(ctx, correlationID)
	if err != nil || tx.RefID != req.RefID {
		SendDomainError(c, domainerrors.UnknownReferenceError(req.RefID))
		return
	}

	status := entities.TransactionStatusSent
	if req.Reason != nil {
		status = entities.TransactionStatusRejected
	}

	amountCents := int64(math.Floor(req.Amount * 100))
	var balanceCents *int64
	if req.Balance != nil {
		b := int64(math.Floor(*req.Balance * 100))
		balanceCents = &b
	}

	payload, err := json.Marshal(rgsEventPayload{
		PlayerID:      tx.PlayerID,
		AmountCents:   amountCents,
		Currency:      req.Currency,
		Status:        string(status),
		Event:         string(direction),
		RefID:         req.RefID,
		CorrelationID: req.CorrelationID,
		BalanceCents:  balanceCents,
		Reason:        req.Reason,
	})
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to build rgs event payload", err))
		return
	}

	outboxRecord := entities.NewOutboxRecord(entities.OutboxQueueToRGS, direction, correlationID, req.RefID, h.rgsWebhookURL, payload, h.maxRetries)

	err = database.WithTransaction(ctx, h.db, func(dbTx *sql.Tx) error {
		if err := h.transactionRepo.UpdateStatusTx(ctx, dbTx, tx.ID, status, req.Reason, balanceCents); err != nil {
			return err
		}
		return h.outboxRepo.EnqueueTx(ctx, dbTx, outboxRecord)
	})
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to persist webhook correlation", err))
		return
	}

	metrics.OutboxEnqueuedTotal.WithLabelValues(string(entities.OutboxQueueToRGS)).Inc()
	_ = h.auditSvc.LogWebhook(ctx, correlationID, "operator", req.Event)

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
