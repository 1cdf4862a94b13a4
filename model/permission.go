// gatekeeper/model/permission.go
package model

import "time"

// ResourcePermission is one grant returned by the identity store. ResourceKey
// is "METHOD:path" and either part may be the wildcard "*" or end in "/*".
type ResourcePermission struct {
	ResourceKey string `json:"resource_key" validate:"required"`
	Allowed     bool   `json:"allowed"`
}

// PermissionDecision is a cached allow/deny for one (subject, resource) pair.
type PermissionDecision struct {
	SubjectID   string        `json:"subject_id"`
	ResourceKey string        `json:"resource_key"`
	Allowed     bool          `json:"allowed"`
	CachedAt    time.Time     `json:"cached_at"`
	TTL         time.Duration `json:"ttl"`
}

func (d *PermissionDecision) ExpiresAt() time.Time {
	return d.CachedAt.Add(d.TTL)
}

// Expired reports whether the decision is past its TTL at now.
func (d *PermissionDecision) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt())
}

// PermissionGrant is the request body for granting or denying a resource key.
type PermissionGrant struct {
	ResourceKey string `json:"resource_key" binding:"required"`
	Allowed     bool   `json:"allowed"`
}
