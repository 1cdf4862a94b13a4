// gatekeeper/util/notification_service.go

package util

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

// NotificationService delivers operator-facing notifications. Delivery is
// the structured log stream, which the log shipper forwards.
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	logger.Warn("NOTIFICATION: admin alert", zap.String("message", message))
	return nil
}

func (n *NotificationService) NotifyAPIKeyChange(ctx context.Context, changeType string, key model.APIKey) error {
	switch changeType {
	case "created", "status_changed":
	default:
		return fmt.Errorf("unknown change type: %s", changeType)
	}
	logger.Info("NOTIFICATION: API key "+changeType,
		zap.String("keyID", key.KeyID),
		zap.String("subjectID", key.SubjectID),
		zap.String("status", string(key.Status)))
	return nil
}

func (n *NotificationService) NotifyPermissionChange(ctx context.Context, changeType string, subjectID string, grants []model.PermissionGrant) error {
	switch changeType {
	case "granted", "revoked":
	default:
		return fmt.Errorf("unknown change type: %s", changeType)
	}
	keys := make([]string, 0, len(grants))
	for _, g := range grants {
		keys = append(keys, g.ResourceKey)
	}
	logger.Info("NOTIFICATION: permissions "+changeType,
		zap.String("subjectID", subjectID),
		zap.Strings("resourceKeys", keys))
	return nil
}
