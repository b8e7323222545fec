package signature

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
)

func TestVerifyAcceptsMatchingSignatureWithinSkew(t *testing.T) {
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"a":1}`)
	sig := Compute("secret", ts, body)

	assert.NoError(t, Verify("secret", ts, sig, body, time.Minute, now))
}

func TestVerifyRejectsMalformedTimestamp(t *testing.T) {
	err := Verify("secret", "not-a-number", "anything", nil, time.Minute, time.Now())
	assert.True(t, domainerrors.IsInvalidSignature(err), "expected an invalid-signature error for a malformed timestamp, got %v", err)
}

func TestVerifyRejectsStaleTimestampBeforeCheckingSignature(t *testing.T) {
	now := time.Now()
	stale := now.Add(-time.Hour)
	ts := strconv.FormatInt(stale.Unix(), 10)

	err := Verify("secret", ts, "whatever-garbage-signature", nil, time.Minute, now)
	assert.True(t, domainerrors.IsTimestampSkew(err), "expected a timestamp-skew error, got %v", err)
}

func TestVerifyRejectsFutureTimestampOutsideSkew(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	ts := strconv.FormatInt(future.Unix(), 10)
	body := []byte(`{}`)
	sig := Compute("secret", ts, body)

	err := Verify("secret", ts, sig, body, time.Minute, now)
	assert.True(t, domainerrors.IsTimestampSkew(err), "expected a timestamp-skew error for a future timestamp, got %v", err)
}

func TestVerifyAcceptsTimestampAtSkewBoundary(t *testing.T) {
	now := time.Now()
	ts := strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)
	body := []byte(`{}`)
	sig := Compute("secret", ts, body)

	require.NoError(t, Verify("secret", ts, sig, body, time.Minute, now))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := Compute("secret", ts, []byte(`{"amount":100}`))

	err := Verify("secret", ts, sig, []byte(`{"amount":100000}`), time.Minute, now)
	assert.True(t, domainerrors.IsInvalidSignature(err), "expected an invalid-signature error for a body that doesn't match the signed payload, got %v", err)
}

func TestComputeIsStableUnderKeyPermutation(t *testing.T) {
	a := Compute("secret", "123", []byte(`{"a":1,"b":2}`))
	b := Compute("secret", "123", []byte(`{"b": 2, "a": 1}`))
	assert.Equal(t, a, b, "expected signatures over the same body with permuted keys and extra whitespace to match")
}

func TestComputeIsDeterministic(t *testing.T) {
	a := Compute("secret", "123", []byte("body"))
	b := Compute("secret", "123", []byte("body"))
	assert.Equal(t, a, b, "expected Compute to be deterministic for identical inputs")

	c := Compute("other-secret", "123", []byte("body"))
	assert.NotEqual(t, a, c, "expected a different secret to produce a different signature")
}
