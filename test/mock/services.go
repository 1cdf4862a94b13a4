// test/mock/services.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
)

// MockTokenService is a mock implementation of service.ITokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Exchange(ctx context.Context, req *pdp_model.AccessRequest) (*model.TokenPair, error) {
	args := m.Called(ctx, req)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenService) Refresh(ctx context.Context, refreshToken string, clientIP string) (*model.TokenPair, error) {
	args := m.Called(ctx, refreshToken, clientIP)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenService) Revoke(ctx context.Context, token string, caller *model.Identity) error {
	args := m.Called(ctx, token, caller)
	return args.Error(0)
}

func (m *MockTokenService) RevokeAll(ctx context.Context, caller *model.Identity) error {
	args := m.Called(ctx, caller)
	return args.Error(0)
}

// MockAPIKeyService is a mock implementation of service.IAPIKeyService and
// of the service.APIKeyStore it depends on.
type MockAPIKeyService struct {
	mock.Mock
}

func (m *MockAPIKeyService) CreateAPIKey(ctx context.Context, req model.CreateAPIKeyRequest) (*model.APIKey, error) {
	args := m.Called(ctx, req)
	key, _ := args.Get(0).(*model.APIKey)
	return key, args.Error(1)
}

func (m *MockAPIKeyService) UpdateAPIKeyStatus(ctx context.Context, keyID string, status model.APIKeyStatus) (*model.APIKey, error) {
	args := m.Called(ctx, keyID, status)
	key, _ := args.Get(0).(*model.APIKey)
	return key, args.Error(1)
}

func (m *MockAPIKeyService) GetAPIKey(ctx context.Context, keyID string) (*model.APIKey, error) {
	args := m.Called(ctx, keyID)
	key, _ := args.Get(0).(*model.APIKey)
	return key, args.Error(1)
}

// MockPermissionService is a mock implementation of
// service.IPermissionService.
type MockPermissionService struct {
	mock.Mock
}

func (m *MockPermissionService) GrantPermissions(ctx context.Context, subjectID string, grants []model.PermissionGrant) error {
	return m.Called(ctx, subjectID, grants).Error(0)
}

func (m *MockPermissionService) RevokePermission(ctx context.Context, subjectID, resourceKey string) error {
	return m.Called(ctx, subjectID, resourceKey).Error(0)
}

func (m *MockPermissionService) ListPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	args := m.Called(ctx, subjectID)
	perms, _ := args.Get(0).([]model.ResourcePermission)
	return perms, args.Error(1)
}

func (m *MockPermissionService) InvalidateCache(ctx context.Context, subjectID, resourceKey string) error {
	return m.Called(ctx, subjectID, resourceKey).Error(0)
}

// MockPermissionStore is a mock implementation of service.PermissionStore
type MockPermissionStore struct {
	mock.Mock
}

func (m *MockPermissionStore) GrantPermissions(ctx context.Context, subjectID string, grants []model.PermissionGrant) error {
	return m.Called(ctx, subjectID, grants).Error(0)
}

func (m *MockPermissionStore) RevokePermission(ctx context.Context, subjectID, resourceKey string) error {
	return m.Called(ctx, subjectID, resourceKey).Error(0)
}

func (m *MockPermissionStore) ListPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	args := m.Called(ctx, subjectID)
	perms, _ := args.Get(0).([]model.ResourcePermission)
	return perms, args.Error(1)
}

// MockCacheInvalidator is a mock implementation of service.CacheInvalidator
type MockCacheInvalidator struct {
	mock.Mock
}

func (m *MockCacheInvalidator) Invalidate(ctx context.Context, subjectID, resourceKey string) error {
	return m.Called(ctx, subjectID, resourceKey).Error(0)
}

func (m *MockCacheInvalidator) InvalidateSubject(ctx context.Context, subjectID string) error {
	return m.Called(ctx, subjectID).Error(0)
}

// MockSecurityService is a mock implementation of service.ISecurityService
type MockSecurityService struct {
	mock.Mock
}

func (m *MockSecurityService) LockAccount(ctx context.Context, subject string, req model.LockAccountRequest) (*model.LockRecord, error) {
	args := m.Called(ctx, subject, req)
	record, _ := args.Get(0).(*model.LockRecord)
	return record, args.Error(1)
}

func (m *MockSecurityService) UnlockAccount(ctx context.Context, subject string) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

func (m *MockSecurityService) AccountStatus(ctx context.Context, subject string) (*model.LockStatus, error) {
	args := m.Called(ctx, subject)
	status, _ := args.Get(0).(*model.LockStatus)
	return status, args.Error(1)
}

func (m *MockSecurityService) BlockIP(ctx context.Context, req model.BlockIPRequest) (*model.BlockRecord, error) {
	args := m.Called(ctx, req)
	record, _ := args.Get(0).(*model.BlockRecord)
	return record, args.Error(1)
}

func (m *MockSecurityService) UnblockIP(ctx context.Context, ip string) error {
	args := m.Called(ctx, ip)
	return args.Error(0)
}

func (m *MockSecurityService) IPStatus(ctx context.Context, ip string) (*model.IPStatus, error) {
	args := m.Called(ctx, ip)
	status, _ := args.Get(0).(*model.IPStatus)
	return status, args.Error(1)
}

func (m *MockSecurityService) RevokeSubjectTokens(ctx context.Context, subject string) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}
