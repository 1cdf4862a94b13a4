package errors

import "errors"

var (
	ErrAPIKeyNotFound    = errors.New("api key not found")
	ErrAPIKeyConflict    = errors.New("api key conflict")
	ErrInvalidAPIKeyData = errors.New("invalid api key data")

	ErrPermissionNotFound    = errors.New("permission not found")
	ErrInvalidPermissionData = errors.New("invalid permission data")

	ErrInvalidSecurityData = errors.New("invalid security data")
)
