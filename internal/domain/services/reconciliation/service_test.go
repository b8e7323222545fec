package reconciliation

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/integration-hub/pkg/httpclient"
	"github.com/rail-service/integration-hub/pkg/logger"
)

func newTestClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{MaxRetries: 0}, logger.New("error", "test"))
}

func TestGenerateCSVSymmetricDifference(t *testing.T) {
	rgsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"refId":"ref-1","correlationId":"c-1","event":"debit","amountCents":500},
			{"refId":"ref-2","correlationId":"c-2","event":"credit","amountCents":1000}
		]`))
	}))
	defer rgsServer.Close()

	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"reference":"ref-1","correlationId":"c-1","direction":"withdraw","amount":5.0},
			{"reference":"ref-3","correlationId":"c-3","direction":"deposit","amount":7.5}
		]`))
	}))
	defer operatorServer.Close()

	svc := NewService(newTestClient(), newTestClient(), rgsServer.URL, operatorServer.URL, logger.New("error", "test"))

	csvText, count, err := svc.GenerateCSV(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count, "ref-2 missing from operator, ref-3 missing from rgs")

	r := csv.NewReader(strings.NewReader(csvText))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "expected header + 2 data rows")
	assert.Equal(t, "refId", rows[0][0])

	var sawRef2, sawRef3 bool
	for _, row := range rows[1:] {
		switch row[0] {
		case "ref-2":
			sawRef2 = true
			assert.Equal(t, "True", row[4])
			assert.Equal(t, "False", row[5])
		case "ref-3":
			sawRef3 = true
			assert.Equal(t, "False", row[4])
			assert.Equal(t, "True", row[5])
		}
	}
	assert.True(t, sawRef2, "expected a ref-2 mismatch row")
	assert.True(t, sawRef3, "expected a ref-3 mismatch row")
}

func TestGenerateCSVDownstreamError(t *testing.T) {
	rgsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rgsServer.Close()

	operatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer operatorServer.Close()

	svc := NewService(newTestClient(), newTestClient(), rgsServer.URL, operatorServer.URL, logger.New("error", "test"))

	_, _, err := svc.GenerateCSV(context.Background())
	assert.Error(t, err, "expected an error when the rgs webhook list endpoint fails")
}
