package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rail-service/integration-hub/pkg/signature"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", chain...)
	return r
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	r := newTestRouter(BearerAuth("secret-token"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuthAcceptsCorrectToken(t *testing.T) {
	r := newTestRouter(BearerAuth("secret-token"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuthNoOpWhenUnconfigured(t *testing.T) {
	r := newTestRouter(BearerAuth(""))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "expected a no-op when no bearer token is configured")
}

func TestTieredRateLimitNilLimiterIsNoOp(t *testing.T) {
	r := newTestRouter(TieredRateLimit(nil, "wallet"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "expected a no-op with a nil limiter")
}

func TestHeaderSignatureVerifyNoOpWhenUnconfigured(t *testing.T) {
	r := newTestRouter(HeaderSignatureVerify("", time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "expected a no-op when no secret is configured")
}

func TestHeaderSignatureVerifyPassesThroughWhenHeadersAbsent(t *testing.T) {
	r := newTestRouter(HeaderSignatureVerify("shared-secret", time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/x", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "expected a no-op when a secret is configured but the caller sent neither header")
}

func TestHeaderSignatureVerifyAcceptsValidSignature(t *testing.T) {
	secret := "shared-secret"
	body := []byte(`{"hello":"world"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signature.Compute(secret, ts, body)

	r := newTestRouter(HeaderSignatureVerify(secret, time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/x", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())
}

func TestHeaderSignatureVerifyRejectsBadSignature(t *testing.T) {
	secret := "shared-secret"
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	r := newTestRouter(HeaderSignatureVerify(secret, time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", "not-the-right-signature")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code, "expected a rejection for a mismatched signature")
}

func TestHeaderSignatureVerifyRejectsStaleTimestamp(t *testing.T) {
	secret := "shared-secret"
	body := []byte(`{}`)
	staleTs := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sig := signature.Compute(secret, staleTs, body)

	r := newTestRouter(HeaderSignatureVerify(secret, time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/x", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", staleTs)
	req.Header.Set("X-Signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code, "expected a rejection for a timestamp outside the skew window")
}
