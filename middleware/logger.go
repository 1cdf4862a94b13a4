package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

// Logger writes one line per request. Server errors log at error level,
// refusals at warn with the denial reason, everything else at info.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		subject := model.AnonymousSubject
		if identity, ok := util.GetIdentityFromContext(c); ok {
			subject = identity.SubjectID
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", ClientIP(c)),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("subject", subject),
		}
		if reason := c.GetString(util.DenialReasonContextKey); reason != "" {
			fields = append(fields, zap.String("reason", reason))
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny).Errors(); len(errs) > 0 {
			fields = append(fields, zap.Strings("errors", errs))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request refused", fields...)
		default:
			logger.Info("Request processed", fields...)
		}
	}
}
