// gatekeeper/model/api_key.go
package model

import "time"

type APIKeyStatus string

const (
	APIKeyActive   APIKeyStatus = "active"
	APIKeyDisabled APIKeyStatus = "disabled"
)

type APIKey struct {
	KeyID     string       `json:"key_id"`
	Secret    string       `json:"secret,omitempty"`
	SubjectID string       `json:"subject_id"`
	Name      string       `json:"name"`
	Scopes    []string     `json:"scopes"`
	Status    APIKeyStatus `json:"status"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Usable reports whether the key may authenticate requests at now.
func (k *APIKey) Usable(now time.Time) bool {
	if k.Status != APIKeyActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// Redacted returns a copy without the secret.
func (k APIKey) Redacted() APIKey {
	k.Secret = ""
	return k
}

type CreateAPIKeyRequest struct {
	SubjectID string     `json:"subject_id" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UpdateAPIKeyStatusRequest struct {
	Status APIKeyStatus `json:"status" binding:"required,oneof=active disabled"`
}
