package entities

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates the events the hub records to the audit log:
// the hub's own machine-to-machine surface rather than user-facing
// actions.
type AuditAction string

const (
	AuditActionWalletAction AuditAction = "wallet_action"
	AuditActionWebhook      AuditAction = "webhook"
	AuditActionAdminReplay  AuditAction = "admin_replay"
	AuditActionClearDB      AuditAction = "clear_db"
)

// AuditLog is a single audit trail entry. ResourceID, when present, points
// at the transaction or outbox record the entry concerns.
type AuditLog struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Action     AuditAction
	Resource   string
	ResourceID *uuid.UUID
	IPAddress  string
	UserAgent  string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}
