// Package reconciliation compares the hub's RGS-facing webhook history
// against the Operator's own transaction list and reports the symmetric
// difference by correlationId.
package reconciliation

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
	"github.com/rail-service/integration-hub/pkg/httpclient"
	"github.com/rail-service/integration-hub/pkg/logger"
	"github.com/rail-service/integration-hub/pkg/metrics"
)

// rgsItem is a single row from the RGS webhook history: the hub's record
// of what it delivered to RGS.
type rgsItem struct {
	RefID         string `json:"refId"`
	CorrelationID string `json:"correlationId"`
	Event         string `json:"event"`
	AmountCents   int64  `json:"amountCents"`
}

// operatorItem is a single row from the Operator's transaction list: the
// remote system's own view of what it processed.
type operatorItem struct {
	Reference     string  `json:"reference"`
	CorrelationID string  `json:"correlationId"`
	Direction     string  `json:"direction"`
	Amount        float64 `json:"amount"`
}

// Mismatch is one row of the reconciliation CSV.
type Mismatch struct {
	RefID         string
	CorrelationID string
	Direction     string
	Amount        float64
	InRGS         bool
	InOperator    bool
}

type Service struct {
	rgsClient      *httpclient.Client
	operatorClient *httpclient.Client
	rgsURL         string
	operatorURL    string
	logger         *logger.Logger
}

func NewService(rgsClient, operatorClient *httpclient.Client, rgsWebhookListURL, operatorTransactionListURL string, log *logger.Logger) *Service {
	return &Service{
		rgsClient:      rgsClient,
		operatorClient: operatorClient,
		rgsURL:         rgsWebhookListURL,
		operatorURL:    operatorTransactionListURL,
		logger:         log,
	}
}

// GenerateCSV pulls both sides, computes the symmetric difference by
// correlationId, and returns the mismatch CSV text alongside the count.
func (s *Service) GenerateCSV(ctx context.Context) (string, int, error) {
	localItems, err := s.fetchRGSItems(ctx)
	if err != nil {
		return "", 0, err
	}
	remoteItems, err := s.fetchOperatorItems(ctx)
	if err != nil {
		return "", 0, err
	}

	var mismatches []Mismatch
	var missingInOperator, missingInRGS int
	for correlationID, item := range localItems {
		if _, ok := remoteItems[correlationID]; ok {
			continue
		}
		missingInOperator++
		mismatches = append(mismatches, Mismatch{
			RefID:         item.RefID,
			CorrelationID: item.CorrelationID,
			Direction:     item.Event,
			Amount:        float64(item.AmountCents) / 100,
			InRGS:         true,
			InOperator:    false,
		})
	}
	for correlationID, item := range remoteItems {
		if _, ok := localItems[correlationID]; ok {
			continue
		}
		missingInRGS++
		mismatches = append(mismatches, Mismatch{
			RefID:         item.Reference,
			CorrelationID: item.CorrelationID,
			Direction:     item.Direction,
			Amount:        item.Amount,
			InRGS:         false,
			InOperator:    true,
		})
	}

	metrics.ReconciliationMismatchesGauge.WithLabelValues("missing_in_operator").Set(float64(missingInOperator))
	metrics.ReconciliationMismatchesGauge.WithLabelValues("missing_in_rgs").Set(float64(missingInRGS))
	s.logger.Info("reconciliation complete", "mismatch_count", len(mismatches))
	return toCSV(mismatches), len(mismatches), nil
}

func (s *Service) fetchRGSItems(ctx context.Context) (map[string]rgsItem, error) {
	resp, err := s.rgsClient.Do(ctx, http.MethodGet, s.rgsURL, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.DownstreamRejectedError(s.rgsURL, resp.StatusCode, string(resp.Body))
	}
	var items []rgsItem
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("decode rgs webhook list: %w", err)
	}
	indexed := make(map[string]rgsItem, len(items))
	for _, item := range items {
		if item.CorrelationID == "" {
			continue
		}
		indexed[item.CorrelationID] = item
	}
	return indexed, nil
}

func (s *Service) fetchOperatorItems(ctx context.Context) (map[string]operatorItem, error) {
	resp, err := s.operatorClient.Do(ctx, http.MethodGet, s.operatorURL, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.DownstreamRejectedError(s.operatorURL, resp.StatusCode, string(resp.Body))
	}
	var items []operatorItem
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("decode operator transaction list: %w", err)
	}
	indexed := make(map[string]operatorItem, len(items))
	for _, item := range items {
		if item.CorrelationID == "" {
			continue
		}
		indexed[item.CorrelationID] = item
	}
	return indexed, nil
}

func toCSV(mismatches []Mismatch) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{"refId", "correlationId", "direction", "amount", "inRGS", "inOperator"})
	boolText := map[bool]string{true: "True", false: "False"}
	for _, m := range mismatches {
		amount := strconv.FormatFloat(m.Amount, 'f', -1, 64)
		if !strings.Contains(amount, ".") {
			amount += ".0"
		}
		_ = w.Write([]string{
			m.RefID,
			m.CorrelationID,
			m.Direction,
			amount,
			boolText[m.InRGS],
			boolText[m.InOperator],
		})
	}
	w.Flush()
	return sb.String()
}
