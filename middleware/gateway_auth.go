// gatekeeper/middleware/gateway_auth.go

package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/verifier"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

// MaxSignedBodyBytes bounds how much of a request body is read for hashing.
const MaxSignedBodyBytes = 10 << 20

type Authenticator interface {
	Authenticate(ctx context.Context, req *pdp_model.AccessRequest) pdp_model.Decision
}

// ClientIP is the address rate limits and blocklists are keyed on. Forwarding
// headers count only when the peer is a trusted proxy of the engine.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// HashRequestBody returns the hex sha256 of the body and puts an unread
// copy back on the request.
func HashRequestBody(c *gin.Context) (string, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return verifier.EmptyBodyHash, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxSignedBodyBytes))
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return verifier.HashBody(body), nil
}

// RespondWithDecision writes the denial body for a refused request. Details
// of dependency failures stay in the logs.
func RespondWithDecision(c *gin.Context, decision pdp_model.Decision) {
	message := decision.Message
	if decision.Status >= http.StatusInternalServerError {
		message = "authorization backend unavailable"
	}
	util.RespondWithDenial(c, decision.Status, string(decision.Reason), message)
}

// GatewayAuth runs every request through the auth pipeline and attaches the
// verified identity to the gin context.
func GatewayAuth(auth Authenticator, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyHash, err := HashRequestBody(c)
		if err != nil {
			logger.Warn("Failed to read request body", zap.Error(err), zap.String("path", c.Request.URL.Path))
			util.RespondWithDenial(c, http.StatusRequestEntityTooLarge, "RequestTooLarge", "request body could not be read")
			return
		}

		req := &pdp_model.AccessRequest{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Headers:   c.Request.Header,
			BodyHash:  bodyHash,
			ClientIP:  ClientIP(c),
			UserAgent: c.Request.UserAgent(),
		}

		decision := auth.Authenticate(c.Request.Context(), req)
		WriteRateHeaders(c, decision, window)
		if !decision.Allowed {
			RespondWithDecision(c, decision)
			return
		}

		c.Set(util.IdentityContextKey, decision.Identity)
		c.Next()
	}
}
