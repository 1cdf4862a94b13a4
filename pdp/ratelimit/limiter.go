package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

type Scope string

const (
	ScopeIdentity Scope = "identity"
	ScopeIP       Scope = "ip"
)

// ExceededError is returned when a subject is over its limit for the
// current window. It unwraps to ErrRateExceeded.
type ExceededError struct {
	Window     model.RateWindow
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d/%d, retry after %s",
		e.Window.SubjectID, e.Window.Count, e.Window.Limit, e.RetryAfter)
}

func (e *ExceededError) Unwrap() error {
	return echo_errors.ErrRateExceeded
}

// Limiter is a fixed-window counter. Windows are aligned to multiples of
// the window duration, so rollover needs no background work: the first
// request of a new window creates a new counter key.
type Limiter struct {
	scope    Scope
	limit    int64
	window   time.Duration
	store    db.Store
	fallback db.Store
	now      func() time.Time
}

// NewLimiter builds a limiter over store. fallback, if set, counts locally
// while store is failing.
func NewLimiter(scope Scope, limit int, window time.Duration, store db.Store, fallback db.Store) *Limiter {
	return &Limiter{
		scope:    scope,
		limit:    int64(limit),
		window:   window,
		store:    store,
		fallback: fallback,
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Limit() int64          { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }
func (l *Limiter) Scope() Scope          { return l.scope }

func (l *Limiter) windowKey(subject string, start time.Time) string {
	return db.Key("rl", string(l.scope), subject, strconv.FormatInt(start.Unix(), 10))
}

// Admit counts one request for subject. It returns the window state when
// admitted, or an *ExceededError once the count passes the limit.
func (l *Limiter) Admit(ctx context.Context, subject string) (*model.RateWindow, error) {
	now := l.now()
	start := now.Truncate(l.window)
	key := l.windowKey(subject, start)

	count, err := l.store.IncrWindow(ctx, key, l.window)
	if err != nil {
		if l.fallback == nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		metrics.DependencyErrorsTotal.WithLabelValues("rate-limiter").Inc()
		metrics.RateLimitFallbackTotal.WithLabelValues(string(l.scope)).Inc()
		logger.Warn("Rate limit store unavailable, counting locally",
			zap.Error(err),
			zap.String("class", "dependency"),
			zap.String("scope", string(l.scope)))
		count, err = l.fallback.IncrWindow(ctx, key, l.window)
		if err != nil {
			return nil, fmt.Errorf("rate limiter fallback: %w", err)
		}
	}

	window := &model.RateWindow{
		SubjectID:   subject,
		WindowStart: start,
		Count:       count,
		Limit:       l.limit,
	}
	if count > l.limit {
		retryAfter := window.ResetAt(l.window).Sub(now)
		metrics.RateLimitRejectionsTotal.WithLabelValues(string(l.scope)).Inc()
		logger.Warn("Rate limit exceeded",
			zap.String("scope", string(l.scope)),
			zap.String("subject", subject),
			zap.Int64("count", count),
			zap.Int64("limit", l.limit),
			zap.Duration("retry_after", retryAfter))
		return window, &ExceededError{Window: *window, RetryAfter: retryAfter}
	}
	return window, nil
}
