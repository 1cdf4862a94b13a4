// test/mock/identity_store.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
)

// MockIdentityStore is a mock implementation of pdp_model.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

var _ pdp_model.IdentityStore = &MockIdentityStore{}

func (m *MockIdentityStore) GetPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	args := m.Called(ctx, subjectID)
	perms, _ := args.Get(0).([]model.ResourcePermission)
	return perms, args.Error(1)
}

func (m *MockIdentityStore) GetSecretForKey(ctx context.Context, keyID string) (*model.APIKey, error) {
	args := m.Called(ctx, keyID)
	key, _ := args.Get(0).(*model.APIKey)
	return key, args.Error(1)
}
