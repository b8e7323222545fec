package repositories

import (
	"context"

	"github.com/rail-service/integration-hub/internal/domain/entities"
)

// ReconciliationRunRepository persists the ambient operability log of
// scheduled reconciliation executions.
type ReconciliationRunRepository interface {
	Create(ctx context.Context, run *entities.ReconciliationRun) error
}
