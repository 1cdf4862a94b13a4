// gatekeeper/errors/auth_errors.go
package errors

import (
	"errors"
	"fmt"
)

// Credential errors. Always surfaced to the caller as a denial.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrUnsupportedScheme = errors.New("unsupported authentication scheme")
	ErrMalformedToken    = errors.New("malformed token")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrExpiredToken      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrUnknownKey        = errors.New("unknown or disabled api key")
	ErrStaleTimestamp    = errors.New("request timestamp outside skew tolerance")
	ErrReplayDetected    = errors.New("replay detected")
	ErrAccountLocked     = errors.New("account locked after repeated failures")

	// ErrRefreshTokenReused is reported as a replay.
	ErrRefreshTokenReused = fmt.Errorf("refresh token already consumed: %w", ErrReplayDetected)
)

var ErrPermissionDenied = errors.New("permission denied")

var ErrIPBlocked = errors.New("client address blocked")

// ErrMalformedRequest covers request paths that are not in canonical form.
var ErrMalformedRequest = errors.New("malformed request")

var ErrRateExceeded = errors.New("rate limit exceeded")

// Dependency errors. Recovered per the fail-open/fail-closed policy and
// escalated to the alert path.
var (
	ErrPermissionLookupUnavailable = errors.New("permission lookup unavailable")
	ErrStoreUnavailable            = errors.New("store unavailable")
	ErrStoreTimeout                = errors.New("store timeout")
)

// IsCredentialError reports whether err belongs to the credential class.
func IsCredentialError(err error) bool {
	for _, target := range []error{
		ErrMissingCredential, ErrUnsupportedScheme, ErrMalformedToken,
		ErrInvalidSignature, ErrExpiredToken, ErrTokenRevoked,
		ErrUnknownKey, ErrStaleTimestamp, ErrReplayDetected,
		ErrAccountLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsDependencyError reports whether err signals infrastructure degradation.
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrPermissionLookupUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreTimeout)
}
