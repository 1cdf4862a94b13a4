package model

import (
	"errors"
	"net/http"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
)

// ReasonCode is the stable, machine-readable cause of a denial.
type ReasonCode string

const (
	ReasonMissingCredential           ReasonCode = "MissingCredential"
	ReasonUnsupportedScheme           ReasonCode = "UnsupportedScheme"
	ReasonMalformedToken              ReasonCode = "MalformedToken"
	ReasonInvalidSignature            ReasonCode = "InvalidSignature"
	ReasonExpiredToken                ReasonCode = "ExpiredToken"
	ReasonTokenRevoked                ReasonCode = "TokenRevoked"
	ReasonUnknownKey                  ReasonCode = "UnknownKey"
	ReasonStaleTimestamp              ReasonCode = "StaleTimestamp"
	ReasonReplayDetected              ReasonCode = "ReplayDetected"
	ReasonAccountLocked               ReasonCode = "AccountLocked"
	ReasonIPBlocked                   ReasonCode = "IPBlocked"
	ReasonMalformedRequest            ReasonCode = "MalformedRequest"
	ReasonPermissionDenied            ReasonCode = "PermissionDenied"
	ReasonRateExceeded                ReasonCode = "RateExceeded"
	ReasonPermissionLookupUnavailable ReasonCode = "PermissionLookupUnavailable"
	ReasonStoreTimeout                ReasonCode = "StoreTimeout"
	ReasonStoreUnavailable            ReasonCode = "StoreUnavailable"
	ReasonInternal                    ReasonCode = "Internal"
)

var reasonTable = []struct {
	err    error
	reason ReasonCode
	status int
}{
	{echo_errors.ErrMissingCredential, ReasonMissingCredential, http.StatusUnauthorized},
	{echo_errors.ErrUnsupportedScheme, ReasonUnsupportedScheme, http.StatusUnauthorized},
	{echo_errors.ErrMalformedToken, ReasonMalformedToken, http.StatusUnauthorized},
	{echo_errors.ErrInvalidSignature, ReasonInvalidSignature, http.StatusUnauthorized},
	{echo_errors.ErrExpiredToken, ReasonExpiredToken, http.StatusUnauthorized},
	{echo_errors.ErrTokenRevoked, ReasonTokenRevoked, http.StatusUnauthorized},
	{echo_errors.ErrUnknownKey, ReasonUnknownKey, http.StatusUnauthorized},
	{echo_errors.ErrStaleTimestamp, ReasonStaleTimestamp, http.StatusUnauthorized},
	{echo_errors.ErrReplayDetected, ReasonReplayDetected, http.StatusUnauthorized},
	{echo_errors.ErrAccountLocked, ReasonAccountLocked, http.StatusUnauthorized},
	{echo_errors.ErrIPBlocked, ReasonIPBlocked, http.StatusForbidden},
	{echo_errors.ErrMalformedRequest, ReasonMalformedRequest, http.StatusBadRequest},
	{echo_errors.ErrPermissionDenied, ReasonPermissionDenied, http.StatusForbidden},
	{echo_errors.ErrRateExceeded, ReasonRateExceeded, http.StatusTooManyRequests},
	{echo_errors.ErrPermissionLookupUnavailable, ReasonPermissionLookupUnavailable, http.StatusServiceUnavailable},
	{echo_errors.ErrStoreTimeout, ReasonStoreTimeout, http.StatusServiceUnavailable},
	{echo_errors.ErrStoreUnavailable, ReasonStoreUnavailable, http.StatusServiceUnavailable},
}

// ReasonFor maps an error to its reason code and HTTP status. The order of
// the table matters: a lookup failure caused by a store timeout reports
// PermissionLookupUnavailable.
func ReasonFor(err error) (ReasonCode, int) {
	for _, row := range reasonTable {
		if errors.Is(err, row.err) {
			return row.reason, row.status
		}
	}
	return ReasonInternal, http.StatusInternalServerError
}
