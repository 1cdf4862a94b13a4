// gatekeeper/router/router.go

package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/controller"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/middleware"
)

// AdminScope is required, on top of a route grant, for the management API.
const AdminScope = "admin"

// SetupRouter mounts the forward-auth endpoint unauthenticated (it is the
// authenticator) and every other /api/v1 route behind GatewayAuth.
// Forwarding headers are honored only from trustedProxies.
func SetupRouter(
	controllers *controller.Controllers,
	auth middleware.Authenticator,
	window time.Duration,
	trustedProxies []string,
) (*gin.Engine, error) {
	router := gin.New()
	if err := TrustProxies(router, trustedProxies); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	controllers.Health.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	controllers.ForwardAuth.RegisterRoutes(api)

	protected := api.Group("", middleware.GatewayAuth(auth, window))
	controllers.Auth.RegisterRoutes(protected)

	admin := protected.Group("", middleware.RequireScopes(AdminScope))
	controllers.APIKey.RegisterRoutes(admin)
	controllers.Permission.RegisterRoutes(admin)
	controllers.Audit.RegisterRoutes(admin)
	controllers.Security.RegisterRoutes(admin)

	return router, nil
}

// TrustProxies limits client IP resolution to the given proxies. gin trusts
// every peer by default, so an empty list must still be applied.
func TrustProxies(router *gin.Engine, proxies []string) error {
	router.ForwardedByClientIP = true
	router.RemoteIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}
	if err := router.SetTrustedProxies(proxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}
	return nil
}
