// gatekeeper/middleware/scope_auth.go

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

// RequireScopes admits the request only if the authenticated identity holds
// at least one of scopes. It must run after GatewayAuth.
func RequireScopes(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := util.GetIdentityFromContext(c)
		if !ok {
			util.RespondWithDenial(c, http.StatusUnauthorized, string(pdp_model.ReasonMissingCredential), "authentication required")
			return
		}

		for _, scope := range scopes {
			if identity.HasScope(scope) {
				c.Next()
				return
			}
		}

		logger.Warn("Identity lacks required scope",
			zap.String("subject", identity.SubjectID),
			zap.Strings("required", scopes),
			zap.Strings("granted", identity.Scopes))
		util.RespondWithDenial(c, http.StatusForbidden, string(pdp_model.ReasonPermissionDenied), "missing required scope")
	}
}
