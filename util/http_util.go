// gatekeeper/util/http_util.go
package util

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

const (
	IdentityContextKey     = "identity"
	DenialReasonContextKey = "denial_reason"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// RespondWithDenial writes the machine-readable body of a refused request.
func RespondWithDenial(c *gin.Context, status int, reason, message string) {
	c.Set(DenialReasonContextKey, reason)
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"reason":  reason,
		"message": message,
	})
}

// GetIdentityFromContext returns the identity the auth middleware attached.
func GetIdentityFromContext(c *gin.Context) (*model.Identity, bool) {
	value, exists := c.Get(IdentityContextKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*model.Identity)
	return identity, ok
}

type actorKey struct{}

// WithActor records who is performing an administrative change.
func WithActor(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, actorKey{}, subjectID)
}

func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return model.AnonymousSubject
}
