// gatekeeper/service/services.go
package service

import (
	"time"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/engine"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type Services struct {
	Token      ITokenService
	APIKey     IAPIKeyService
	Permission IPermissionService
	Security   ISecurityService
}

func InitializeServices(
	issuer TokenIssuer,
	keyVerifier engine.SignedKeyVerifier,
	apiKeys APIKeyStore,
	permissions PermissionStore,
	cache CacheInvalidator,
	sink audit.Sink,
	validationUtil *util.ValidationUtil,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
	lockout AccountLockout,
	blocklist AddressBlocklist,
	maxBlockTTL time.Duration,
) (*Services, error) {
	services := &Services{
		Token:      NewTokenService(issuer, keyVerifier, sink),
		APIKey:     NewAPIKeyService(apiKeys, validationUtil, notificationSvc, eventBus),
		Permission: NewPermissionService(permissions, cache, validationUtil, notificationSvc, eventBus),
		Security:   NewSecurityService(lockout, blocklist, issuer, sink, notificationSvc, maxBlockTTL),
	}

	return services, nil
}
