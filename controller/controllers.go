// gatekeeper/controller/controllers.go
package controller

import (
	"time"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/middleware"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
)

type Controllers struct {
	ForwardAuth *ForwardAuthController
	Auth        *AuthController
	APIKey      *APIKeyController
	Permission  *PermissionController
	Audit       *AuditController
	Security    *SecurityController
	Health      *HealthController
}

func InitializeControllers(
	services *service.Services,
	auth middleware.Authenticator,
	window time.Duration,
	auditService audit.Service,
	health *HealthController,
) *Controllers {
	return &Controllers{
		ForwardAuth: NewForwardAuthController(auth, window),
		Auth:        NewAuthController(services.Token),
		APIKey:      NewAPIKeyController(services.APIKey),
		Permission:  NewPermissionController(services.Permission),
		Audit:       NewAuditController(auditService),
		Security:    NewSecurityController(services.Security),
		Health:      health,
	}
}
