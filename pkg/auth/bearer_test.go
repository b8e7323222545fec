package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
)

func TestVerifyBearerNoOpWhenUnconfigured(t *testing.T) {
	assert.NoError(t, VerifyBearer("", ""))
	assert.NoError(t, VerifyBearer("Bearer anything", ""), "expected no error with an empty expected token regardless of header")
}

func TestVerifyBearerAcceptsMatchingToken(t *testing.T) {
	assert.NoError(t, VerifyBearer("Bearer secret-token", "secret-token"))
}

func TestVerifyBearerAcceptsMatchingTokenWithExtraWhitespace(t *testing.T) {
	assert.NoError(t, VerifyBearer("Bearer  secret-token ", "secret-token"), "expected surrounding whitespace in the token to be trimmed")
}

func TestVerifyBearerRejectsMissingPrefix(t *testing.T) {
	err := VerifyBearer("secret-token", "secret-token")
	assert.True(t, domainerrors.IsUnauthorized(err), "expected an unauthorized error when the Bearer prefix is missing, got %v", err)
}

func TestVerifyBearerRejectsWrongToken(t *testing.T) {
	err := VerifyBearer("Bearer wrong-token", "secret-token")
	assert.True(t, domainerrors.IsUnauthorized(err), "expected an unauthorized error for a mismatched token, got %v", err)
}

func TestVerifyBearerRejectsEmptyHeader(t *testing.T) {
	err := VerifyBearer("", "secret-token")
	assert.True(t, domainerrors.IsUnauthorized(err), "expected an unauthorized error for a missing header, got %v", err)
}
