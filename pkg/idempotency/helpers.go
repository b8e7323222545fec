package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/rail-service/integration-hub/pkg/signature"
)

// DefaultTTL is how long a cached idempotent response stays valid.
const DefaultTTL = 24 * time.Hour

// Response is the cached shape compared against a replayed request.
type Response struct {
	Status int
	Body   []byte
}

// ValidateKey enforces a sane shape on the client-supplied Idempotency-Key
// header: non-empty and bounded, to keep it usable as a DB unique key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("idempotency key must not be empty")
	}
	if len(key) > 255 {
		return fmt.Errorf("idempotency key must not exceed 255 characters")
	}
	return nil
}

// ReadBody reads up to maxBytes of a request body for hashing, rejecting
// anything larger rather than silently truncating it.
func ReadBody(body io.Reader, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// HashRequest computes the SHA-256 digest of the canonical request body,
// used to detect an Idempotency-Key reused with a different payload. Hashing
// the canonical form means a replay with the same fields in a different
// order still matches the first request's stored hash.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(signature.Canonicalize(body))
	return hex.EncodeToString(sum[:])
}

// ShouldReturnCached decides whether a replayed request matches the
// original closely enough to return the cached response. A hash mismatch
// is an idempotency conflict, not a cache hit.
func ShouldReturnCached(cached *Response, requestHash, storedHash string) (bool, string) {
	if requestHash != storedHash {
		return false, "idempotency key reused with a different request body"
	}
	return true, ""
}
