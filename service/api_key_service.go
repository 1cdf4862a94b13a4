// gatekeeper/service/api_key_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type IAPIKeyService interface {
	CreateAPIKey(ctx context.Context, req model.CreateAPIKeyRequest) (*model.APIKey, error)
	UpdateAPIKeyStatus(ctx context.Context, keyID string, status model.APIKeyStatus) (*model.APIKey, error)
	GetAPIKey(ctx context.Context, keyID string) (*model.APIKey, error)
}

type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, req model.CreateAPIKeyRequest) (*model.APIKey, error)
	UpdateAPIKeyStatus(ctx context.Context, keyID string, status model.APIKeyStatus) (*model.APIKey, error)
	GetAPIKey(ctx context.Context, keyID string) (*model.APIKey, error)
}

type APIKeyService struct {
	store           APIKeyStore
	validationUtil  *util.ValidationUtil
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
}

var _ IAPIKeyService = &APIKeyService{}

func NewAPIKeyService(store APIKeyStore, validationUtil *util.ValidationUtil, notificationSvc *util.NotificationService, eventBus *util.EventBus) *APIKeyService {
	service := &APIKeyService{
		store:           store,
		validationUtil:  validationUtil,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
	}

	eventBus.Subscribe(util.TopicAPIKeyChanged, service.handleAPIKeyChanged)

	return service
}

func (s *APIKeyService) handleAPIKeyChanged(ctx context.Context, event util.Event) error {
	key, ok := event.Payload.(model.APIKey)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	changeType := "status_changed"
	if key.CreatedAt.Equal(key.UpdatedAt) {
		changeType = "created"
	}
	return s.notificationSvc.NotifyAPIKeyChange(ctx, changeType, key)
}

// CreateAPIKey returns the new key with its secret; later reads never
// include it.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, req model.CreateAPIKeyRequest) (*model.APIKey, error) {
	if err := s.validationUtil.ValidateScopes(req.Scopes); err != nil {
		return nil, fmt.Errorf("%w: %v", echo_errors.ErrInvalidAPIKeyData, err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", echo_errors.ErrInvalidAPIKeyData)
	}

	key, err := s.store.CreateAPIKey(ctx, req)
	if err != nil {
		logger.Error("Failed to create api key", zap.Error(err), zap.String("subjectID", req.SubjectID))
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}

	s.eventBus.Publish(ctx, util.TopicAPIKeyChanged, key.Redacted())
	return key, nil
}

func (s *APIKeyService) UpdateAPIKeyStatus(ctx context.Context, keyID string, status model.APIKeyStatus) (*model.APIKey, error) {
	if status != model.APIKeyActive && status != model.APIKeyDisabled {
		return nil, fmt.Errorf("%w: unknown status %q", echo_errors.ErrInvalidAPIKeyData, status)
	}

	key, err := s.store.UpdateAPIKeyStatus(ctx, keyID, status)
	if err != nil {
		logger.Error("Failed to update api key status", zap.Error(err), zap.String("keyID", keyID))
		return nil, fmt.Errorf("failed to update api key status: %w", err)
	}

	redacted := key.Redacted()
	s.eventBus.Publish(ctx, util.TopicAPIKeyChanged, redacted)
	return &redacted, nil
}

func (s *APIKeyService) GetAPIKey(ctx context.Context, keyID string) (*model.APIKey, error) {
	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	redacted := key.Redacted()
	return &redacted, nil
}
