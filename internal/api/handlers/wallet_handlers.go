package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rail-service/integration-hub/internal/domain/entities"
	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/internal/domain/repositories"
	"github.com/rail-service/integration-hub/internal/domain/services/audit"
	"github.com/rail-service/integration-hub/internal/infrastructure/database"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/metrics"
)

// WalletRequest is the inbound wallet-action body.
type WalletRequest struct {
	PlayerID    string `json:"playerId" binding:"required"`
	AmountCents int64  `json:"amountCents" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	RefID       string `json:"refId" binding:"required"`
}

// WalletResponse is the outbound wallet-action body, also what gets
// cached verbatim by the idempotency middleware on a replay.
type WalletResponse struct {
	Status        string  `json:"status"`
	RefID         string  `json:"refId,omitempty"`
	CorrelationID string  `json:"correlationId,omitempty"`
	BalanceCents  *int64  `json:"balanceCents,omitempty"`
	Reason        *string `json:"reason,omitempty"`
}

// operatorPayload is the Operator-shape outbox body: amounts in units.
type operatorPayload struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Reference     string  `json:"reference"`
	CorrelationID string  `json:"correlationId"`
}

// WalletHandlers implements C7a: the wallet debit/credit ingress.
type WalletHandlers struct {
	db              *sql.DB
	transactionRepo repositories.TransactionRepository
	outboxRepo      repositories.OutboxRepository
	auditSvc        *audit.Service
	currencies      *entities.CurrencyAllowlist
	operatorBaseURL string
	maxRetries      int
	logger          *logger.Logger
}

func NewWalletHandlers(
	db *sql.DB,
	transactionRepo repositories.TransactionRepository,
	outboxRepo repositories.OutboxRepository,
	auditSvc *audit.Service,
	supportedCurrencies []string,
	operatorBaseURL string,
	maxRetries int,
	log *logger.Logger,
) *WalletHandlers {
	return &WalletHandlers{
		db:              db,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		auditSvc:        auditSvc,
		currencies:      entities.NewCurrencyAllowlist(supportedCurrencies),
		operatorBaseURL: strings.TrimRight(operatorBaseURL, "/"),
		maxRetries:      maxRetries,
		logger:          log,
	}
}

// HandleWalletAction serves POST /wallet/{action}.
func (h *WalletHandlers) HandleWalletAction(c *gin.Context) {
	actionParam := c.Param("action")
	direction, ok := parseWalletAction(actionParam)
	if !ok {
		SendBadRequest(c, ErrCodeInvalidRequest, fmt.Sprintf("unsupported wallet action %q", actionParam))
		return
	}

	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, err.Error())
		return
	}

	currency := strings.ToUpper(req.Currency)
	if !h.currencies.IsSupported(currency) {
		SendDomainError(c, domainerrors.UnsupportedCurrencyError(req.Currency))
		return
	}

	ctx := c.Request.Context()

	if entities.IsBlockedPlayer(req.PlayerID) {
		reason := "User Account Is Blocked"
		resp := WalletResponse{Status: "REJECTED", Reason: &reason}
		_ = h.auditSvc.LogWalletAction(ctx, uuid.Nil, req.RefID, direction, req.AmountCents, "rejected")
		c.JSON(http.StatusOK, resp)
		return
	}

	correlationID := uuid.New()
	externalPlayerID := req.PlayerID + "_ext"
	targetURL := fmt.Sprintf("%s/v2/players/%s/%s", h.operatorBaseURL, externalPlayerID, direction.OperatorVerb())

	amountUnits, _ := decimal.New(req.AmountCents, -2).Float64()
	payload, err := json.Marshal(operatorPayload{
		Amount:        amountUnits,
		Currency:      currency,
		Reference:     req.RefID,
		CorrelationID: correlationID.String(),
	})
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to build operator payload", err))
		return
	}

	balanceCents := entities.ComputeOptimisticBalanceCents(direction, req.AmountCents)
	tx := entities.NewInitiatedTransaction(req.RefID, req.PlayerID, req.AmountCents, currency, direction, correlationID, balanceCents)
	outboxRecord := entities.NewOutboxRecord(entities.OutboxQueueToOperator, direction, correlationID, req.RefID, targetURL, payload, h.maxRetries)

	err = database.WithTransaction(ctx, h.db, func(dbTx *sql.Tx) error {
		if err := h.transactionRepo.CreateTx(ctx, dbTx, tx); err != nil {
			return err
		}
		return h.outboxRepo.EnqueueTx(ctx, dbTx, outboxRecord)
	})
	if err != nil {
		SendDomainError(c, domainerrors.InternalError("failed to persist wallet transaction", err))
		return
	}

	metrics.OutboxEnqueuedTotal.WithLabelValues(string(entities.OutboxQueueToOperator)).Inc()
	_ = h.auditSvc.LogWalletAction(ctx, tx.ID, req.RefID, direction, req.AmountCents, "initiated")

	c.JSON(http.StatusOK, WalletResponse{
		Status:        "initiated",
		RefID:         req.RefID,
		CorrelationID: correlationID.String(),
		BalanceCents:  &balanceCents,
	})
}

func parseWalletAction(action string) (entities.WalletAction, bool) {
	switch strings.ToLower(action) {
	case "debit":
		return entities.WalletActionDebit, true
	case "credit":
		return entities.WalletActionCredit, true
	default:
		return "", false
	}
}
