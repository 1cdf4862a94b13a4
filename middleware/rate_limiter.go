// gatekeeper/middleware/rate_limiter.go

package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
)

// WriteRateHeaders reports the caller's rate window on the response.
// Retry-After is only set on a RateExceeded denial.
func WriteRateHeaders(c *gin.Context, decision pdp_model.Decision, window time.Duration) {
	if w := decision.RateWindow; w != nil {
		c.Header("X-RateLimit-Limit", strconv.FormatInt(w.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(w.Remaining(), 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(w.ResetAt(window).Unix(), 10))
	}
	if decision.Reason == pdp_model.ReasonRateExceeded && decision.RetryAfter > 0 {
		seconds := int64(math.Ceil(decision.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	}
}
