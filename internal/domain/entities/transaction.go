package entities

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a ledger row.
type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusSent      TransactionStatus = "sent"
	TransactionStatusRejected  TransactionStatus = "rejected"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the hub's ledger row: one per (RefID, Direction). It
// records intent and status, not a balance of record.
type Transaction struct {
	ID            uuid.UUID
	RefID         string
	PlayerID      string
	AmountCents   int64
	Currency      string
	Direction     WalletAction
	Status        TransactionStatus
	Reason        *string
	BalanceCents  *int64
	CorrelationID uuid.UUID
	CreatedAt     time.Time
}

// NewInitiatedTransaction builds the ledger row created on ingress, before
// any outbox delivery has been attempted.
func NewInitiatedTransaction(refID, playerID string, amountCents int64, currency string, direction WalletAction, correlationID uuid.UUID, balanceCents int64) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		RefID:         refID,
		PlayerID:      playerID,
		AmountCents:   amountCents,
		Currency:      currency,
		Direction:     direction,
		Status:        TransactionStatusInitiated,
		BalanceCents:  &balanceCents,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
}
