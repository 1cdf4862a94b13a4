// gatekeeper/model/identity.go
package model

import "time"

type IdentityType string

const (
	IdentityUser      IdentityType = "user"
	IdentityService   IdentityType = "service"
	IdentityAPIKey    IdentityType = "api_key"
	IdentityAnonymous IdentityType = "anonymous"
)

const AnonymousSubject = "anonymous"

// Identity is the verified caller of a single request.
type Identity struct {
	SubjectID string       `json:"subject_id"`
	Type      IdentityType `json:"type"`
	Scopes    []string     `json:"scopes,omitempty"`
	IssuedAt  time.Time    `json:"issued_at"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
	KeyID     string       `json:"key_id,omitempty"`
	TokenID   string       `json:"token_id,omitempty"`
}

func Anonymous(now time.Time) *Identity {
	return &Identity{SubjectID: AnonymousSubject, Type: IdentityAnonymous, IssuedAt: now}
}

func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
