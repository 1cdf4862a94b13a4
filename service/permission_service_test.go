package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

func newPermissionService() (*service.PermissionService, *mock.MockPermissionStore, *mock.MockCacheInvalidator, *util.EventBus) {
	store := &mock.MockPermissionStore{}
	cache := &mock.MockCacheInvalidator{}
	bus := util.NewEventBus()
	svc := service.NewPermissionService(store, cache, util.NewValidationUtil(), util.NewNotificationService(), bus)
	return svc, store, cache, bus
}

func TestPermissionService_GrantInvalidatesSubject(t *testing.T) {
	svc, store, cache, bus := newPermissionService()
	grants := []model.PermissionGrant{{ResourceKey: "GET:/widgets/*", Allowed: true}}
	store.On("GrantPermissions", testify_mock.Anything, "U1", grants).Return(nil)
	cache.On("InvalidateSubject", testify_mock.Anything, "U1").Return(nil)

	err := svc.GrantPermissions(context.Background(), "U1", grants)
	bus.Wait()

	assert.NoError(t, err)
	store.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestPermissionService_GrantRejectsBadKeys(t *testing.T) {
	svc, store, _, _ := newPermissionService()

	err := svc.GrantPermissions(context.Background(), "U1", []model.PermissionGrant{{ResourceKey: "widgets"}})
	assert.ErrorIs(t, err, echo_errors.ErrInvalidPermissionData)

	err = svc.GrantPermissions(context.Background(), "", []model.PermissionGrant{{ResourceKey: "GET:/a"}})
	assert.ErrorIs(t, err, echo_errors.ErrInvalidPermissionData)
	store.AssertNotCalled(t, "GrantPermissions")
}

func TestPermissionService_RevokeNotFound(t *testing.T) {
	svc, store, cache, bus := newPermissionService()
	store.On("RevokePermission", testify_mock.Anything, "U1", "GET:/a").Return(echo_errors.ErrPermissionNotFound)

	err := svc.RevokePermission(context.Background(), "U1", "GET:/a")
	bus.Wait()

	assert.ErrorIs(t, err, echo_errors.ErrPermissionNotFound)
	cache.AssertNotCalled(t, "InvalidateSubject")
}

func TestPermissionService_InvalidateCache(t *testing.T) {
	svc, _, cache, _ := newPermissionService()
	cache.On("Invalidate", testify_mock.Anything, "U1", "GET:/a").Return(nil)
	cache.On("InvalidateSubject", testify_mock.Anything, "U2").Return(errors.New("redis down"))

	assert.NoError(t, svc.InvalidateCache(context.Background(), "U1", "GET:/a"))
	assert.Error(t, svc.InvalidateCache(context.Background(), "U2", ""))
}
