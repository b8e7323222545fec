package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/internal/domain/services/reconciliation"
	"github.com/rail-service/integration-hub/pkg/logger"
)

// ReconciliationHandlers exposes the on-demand RGS/Operator comparison endpoint.
type ReconciliationHandlers struct {
	service *reconciliation.Service
	logger  *logger.Logger
}

func NewReconciliationHandlers(service *reconciliation.Service, log *logger.Logger) *ReconciliationHandlers {
	return &ReconciliationHandlers{service: service, logger: log}
}

// HandleReconciliationData serves GET /reconciliation_data.
func (h *ReconciliationHandlers) HandleReconciliationData(c *gin.Context) {
	csv, mismatchCount, err := h.service.GenerateCSV(c.Request.Context())
	if err != nil {
		if _, ok := err.(*domainerrors.DomainError); ok {
			SendDomainError(c, err)
			return
		}
		SendDomainError(c, domainerrors.ServiceUnavailableError("reconciliation", err))
		return
	}

	c.Header("X-Mismatch-Count", strconv.Itoa(mismatchCount))
	c.Data(http.StatusOK, "text/csv", []byte(csv))
}
