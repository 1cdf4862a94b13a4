// gatekeeper/controller/forward_auth_controller.go
package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/middleware"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

const (
	HeaderForwardedMethod = "X-Forwarded-Method"
	HeaderForwardedURI    = "X-Forwarded-Uri"
	HeaderContentSHA256   = "X-Content-Sha256"

	HeaderAuthSubject = "X-Auth-Subject"
	HeaderAuthType    = "X-Auth-Type"
	HeaderAuthScopes  = "X-Auth-Scopes"
)

// ForwardAuthController answers a reverse proxy's sub-request: 200 with the
// identity headers to let the original request through, or the denial.
type ForwardAuthController struct {
	auth   middleware.Authenticator
	window time.Duration
}

func NewForwardAuthController(auth middleware.Authenticator, window time.Duration) *ForwardAuthController {
	return &ForwardAuthController{auth: auth, window: window}
}

func (fc *ForwardAuthController) RegisterRoutes(r *gin.RouterGroup) {
	r.Any("/auth/check", fc.Check)
}

func (fc *ForwardAuthController) Check(c *gin.Context) {
	method := c.GetHeader(HeaderForwardedMethod)
	if method == "" {
		method = c.Request.Method
	}
	// Decoded once, like the router decodes c.Request.URL.Path, so the
	// dispatcher sees the same form on both entry points.
	path := c.Request.URL.Path
	if uri := c.GetHeader(HeaderForwardedURI); uri != "" {
		decoded, err := pdp_model.DecodePath(uri)
		if err != nil {
			logger.Warn("Undecodable forwarded uri", zap.Error(err), zap.String("uri", uri))
			middleware.RespondWithDecision(c, pdp_model.Deny(err))
			return
		}
		path = decoded
	}

	bodyHash := strings.ToLower(c.GetHeader(HeaderContentSHA256))
	if bodyHash == "" {
		var err error
		bodyHash, err = middleware.HashRequestBody(c)
		if err != nil {
			util.RespondWithError(c, http.StatusRequestEntityTooLarge, "Request body could not be read", err)
			return
		}
	}

	req := &pdp_model.AccessRequest{
		Method:    strings.ToUpper(method),
		Path:      path,
		Headers:   c.Request.Header,
		BodyHash:  bodyHash,
		ClientIP:  middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}

	decision := fc.auth.Authenticate(c.Request.Context(), req)
	middleware.WriteRateHeaders(c, decision, fc.window)
	if !decision.Allowed {
		middleware.RespondWithDecision(c, decision)
		return
	}

	if identity := decision.Identity; identity != nil {
		c.Header(HeaderAuthSubject, identity.SubjectID)
		c.Header(HeaderAuthType, string(identity.Type))
		if len(identity.Scopes) > 0 {
			c.Header(HeaderAuthScopes, strings.Join(identity.Scopes, " "))
		}
	}
	c.Status(http.StatusOK)
}
