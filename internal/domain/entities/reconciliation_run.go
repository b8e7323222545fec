package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationRun records that the scheduled reconciliation job executed,
// purely for operability; it is not consulted by the synchronous
// reconciliation endpoint.
type ReconciliationRun struct {
	ID             uuid.UUID
	RanAt          time.Time
	MismatchCount  int
	Succeeded      bool
	FailureMessage *string
}

func NewReconciliationRun(mismatchCount int, failureMessage *string) *ReconciliationRun {
	return &ReconciliationRun{
		ID:             uuid.New(),
		RanAt:          time.Now().UTC(),
		MismatchCount:  mismatchCount,
		Succeeded:      failureMessage == nil,
		FailureMessage: failureMessage,
	}
}
