// Package auth implements the hub's single static-bearer-token check. There
// is no session or JWT concept here: every admin and ingress caller
// authenticates with the same shared secret, compared in constant time.
package auth

import (
	"crypto/subtle"
	"strings"

	domainerrors "github.com/rail-service/integration-hub/internal/domain/errors"
)

// VerifyBearer checks an Authorization header value against the configured
// token. An empty configured token disables the check (used in local/dev
// configs where no token is set).
func VerifyBearer(authorizationHeader, expectedToken string) error {
	if expectedToken == "" {
		return nil
	}
	if !strings.HasPrefix(authorizationHeader, "Bearer ") {
		return domainerrors.UnauthorizedError("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
		return domainerrors.UnauthorizedError("invalid bearer token")
	}
	return nil
}
