package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

func newAPIKeyService() (*service.APIKeyService, *mock.MockAPIKeyService, *util.EventBus) {
	store := &mock.MockAPIKeyService{}
	bus := util.NewEventBus()
	return service.NewAPIKeyService(store, util.NewValidationUtil(), util.NewNotificationService(), bus), store, bus
}

func TestAPIKeyService_CreateReturnsSecretOnce(t *testing.T) {
	svc, store, bus := newAPIKeyService()
	req := model.CreateAPIKeyRequest{SubjectID: "svc-1", Name: "billing", Scopes: []string{"invoices:write"}}
	now := time.Now()
	store.On("CreateAPIKey", testify_mock.Anything, req).
		Return(&model.APIKey{KeyID: "ak_1", Secret: "s3cret", SubjectID: "svc-1", Status: model.APIKeyActive, CreatedAt: now, UpdatedAt: now}, nil)
	store.On("GetAPIKey", testify_mock.Anything, "ak_1").
		Return(&model.APIKey{KeyID: "ak_1", Secret: "s3cret", SubjectID: "svc-1", Status: model.APIKeyActive}, nil)

	created, err := svc.CreateAPIKey(context.Background(), req)
	bus.Wait()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", created.Secret)

	fetched, err := svc.GetAPIKey(context.Background(), "ak_1")
	require.NoError(t, err)
	assert.Empty(t, fetched.Secret)
}

func TestAPIKeyService_Validation(t *testing.T) {
	svc, store, _ := newAPIKeyService()
	past := time.Now().Add(-time.Hour)

	_, err := svc.CreateAPIKey(context.Background(), model.CreateAPIKeyRequest{SubjectID: "s", Name: "n", ExpiresAt: &past})
	assert.ErrorIs(t, err, echo_errors.ErrInvalidAPIKeyData)

	_, err = svc.CreateAPIKey(context.Background(), model.CreateAPIKeyRequest{SubjectID: "s", Name: "n", Scopes: []string{"a b"}})
	assert.ErrorIs(t, err, echo_errors.ErrInvalidAPIKeyData)

	_, err = svc.UpdateAPIKeyStatus(context.Background(), "ak_1", "paused")
	assert.ErrorIs(t, err, echo_errors.ErrInvalidAPIKeyData)
	store.AssertNotCalled(t, "CreateAPIKey")
}

func TestAPIKeyService_DisableRedacts(t *testing.T) {
	svc, store, bus := newAPIKeyService()
	store.On("UpdateAPIKeyStatus", testify_mock.Anything, "ak_1", model.APIKeyDisabled).
		Return(&model.APIKey{KeyID: "ak_1", Secret: "s3cret", Status: model.APIKeyDisabled}, nil)

	key, err := svc.UpdateAPIKeyStatus(context.Background(), "ak_1", model.APIKeyDisabled)
	bus.Wait()
	require.NoError(t, err)
	assert.Equal(t, model.APIKeyDisabled, key.Status)
	assert.Empty(t, key.Secret)
}
