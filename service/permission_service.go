// gatekeeper/service/permission_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

// IPermissionService defines the interface for permission operations
type IPermissionService interface {
	GrantPermissions(ctx context.Context, subjectID string, grants []model.PermissionGrant) error
	RevokePermission(ctx context.Context, subjectID, resourceKey string) error
	ListPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error)
	InvalidateCache(ctx context.Context, subjectID, resourceKey string) error
}

type PermissionStore interface {
	GrantPermissions(ctx context.Context, subjectID string, grants []model.PermissionGrant) error
	RevokePermission(ctx context.Context, subjectID, resourceKey string) error
	ListPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, subjectID, resourceKey string) error
	InvalidateSubject(ctx context.Context, subjectID string) error
}

// PermissionService handles grant changes and keeps the permission cache in
// step with them through the event bus.
type PermissionService struct {
	store           PermissionStore
	cache           CacheInvalidator
	validationUtil  *util.ValidationUtil
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
}

var _ IPermissionService = &PermissionService{}

func NewPermissionService(store PermissionStore, cache CacheInvalidator, validationUtil *util.ValidationUtil, notificationSvc *util.NotificationService, eventBus *util.EventBus) *PermissionService {
	service := &PermissionService{
		store:           store,
		cache:           cache,
		validationUtil:  validationUtil,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
	}

	eventBus.Subscribe(util.TopicPermissionChanged, service.handlePermissionChanged)

	return service
}

func (s *PermissionService) handlePermissionChanged(ctx context.Context, event util.Event) error {
	change, ok := event.Payload.(util.PermissionChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	logger.Info("Permission changed event received",
		zap.String("subjectID", change.SubjectID),
		zap.String("resourceKey", change.ResourceKey))

	return s.InvalidateCache(ctx, change.SubjectID, change.ResourceKey)
}

func (s *PermissionService) GrantPermissions(ctx context.Context, subjectID string, grants []model.PermissionGrant) error {
	if subjectID == "" {
		return fmt.Errorf("%w: subject id is required", echo_errors.ErrInvalidPermissionData)
	}
	if err := s.validationUtil.ValidateGrants(grants); err != nil {
		return fmt.Errorf("%w: %v", echo_errors.ErrInvalidPermissionData, err)
	}

	if err := s.store.GrantPermissions(ctx, subjectID, grants); err != nil {
		logger.Error("Failed to grant permissions", zap.Error(err), zap.String("subjectID", subjectID))
		return fmt.Errorf("failed to grant permissions: %w", err)
	}

	// Wildcard grants can change decisions for any cached resource key, so
	// the whole subject is invalidated.
	s.eventBus.Publish(ctx, util.TopicPermissionChanged, util.PermissionChanged{SubjectID: subjectID})

	if err := s.notificationSvc.NotifyPermissionChange(ctx, "granted", subjectID, grants); err != nil {
		logger.Warn("Failed to send permission grant notification", zap.Error(err), zap.String("subjectID", subjectID))
	}
	return nil
}

func (s *PermissionService) RevokePermission(ctx context.Context, subjectID, resourceKey string) error {
	if err := s.validationUtil.ValidateResourceKey(resourceKey); err != nil {
		return fmt.Errorf("%w: %v", echo_errors.ErrInvalidPermissionData, err)
	}

	if err := s.store.RevokePermission(ctx, subjectID, resourceKey); err != nil {
		logger.Error("Failed to revoke permission",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.String("resourceKey", resourceKey))
		return fmt.Errorf("failed to revoke permission: %w", err)
	}

	s.eventBus.Publish(ctx, util.TopicPermissionChanged, util.PermissionChanged{SubjectID: subjectID})

	revoked := []model.PermissionGrant{{ResourceKey: resourceKey}}
	if err := s.notificationSvc.NotifyPermissionChange(ctx, "revoked", subjectID, revoked); err != nil {
		logger.Warn("Failed to send permission revoke notification", zap.Error(err), zap.String("subjectID", subjectID))
	}
	return nil
}

func (s *PermissionService) ListPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	perms, err := s.store.ListPermissions(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return perms, nil
}

// InvalidateCache drops cached decisions for one resource key of the
// subject, or all of them when resourceKey is empty.
func (s *PermissionService) InvalidateCache(ctx context.Context, subjectID, resourceKey string) error {
	var err error
	if resourceKey == "" {
		err = s.cache.InvalidateSubject(ctx, subjectID)
	} else {
		err = s.cache.Invalidate(ctx, subjectID, resourceKey)
	}
	if err != nil {
		logger.Error("Failed to invalidate permission cache",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.String("resourceKey", resourceKey))
		return err
	}
	return nil
}
