package model

import (
	"context"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

// IdentityStore is the source of truth for grants and api key secrets.
type IdentityStore interface {
	GetPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error)
	// GetSecretForKey returns nil, nil when the key does not exist.
	GetSecretForKey(ctx context.Context, keyID string) (*model.APIKey, error)
}
