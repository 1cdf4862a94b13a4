package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/config"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
)

const identityStoreBreaker = "identity-store"

// GuardedIdentityStore bounds every identity store call with a timeout and
// a circuit breaker. Any failure, including an open breaker, surfaces as
// ErrPermissionLookupUnavailable.
type GuardedIdentityStore struct {
	inner   pdp_model.IdentityStore
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
}

var _ pdp_model.IdentityStore = &GuardedIdentityStore{}

func NewGuardedIdentityStore(inner pdp_model.IdentityStore, timeout time.Duration, cfg config.BreakerConfiguration) *GuardedIdentityStore {
	metrics.CircuitBreakerState.WithLabelValues(identityStoreBreaker).Set(0)

	settings := gobreaker.Settings{
		Name:        identityStoreBreaker,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}

	return &GuardedIdentityStore{
		inner:   inner,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State reports the breaker state, for health output.
func (g *GuardedIdentityStore) State() string {
	return g.breaker.State().String()
}

func (g *GuardedIdentityStore) call(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		metrics.DependencyErrorsTotal.WithLabelValues(identityStoreBreaker).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %w", op, echo_errors.ErrPermissionLookupUnavailable, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w: %w: %w", op, echo_errors.ErrPermissionLookupUnavailable, echo_errors.ErrStoreTimeout, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, echo_errors.ErrPermissionLookupUnavailable, err)
	}
	return result, nil
}

func (g *GuardedIdentityStore) GetPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	result, err := g.call(ctx, "get permissions", func(ctx context.Context) (any, error) {
		return g.inner.GetPermissions(ctx, subjectID)
	})
	if err != nil {
		return nil, err
	}
	perms, _ := result.([]model.ResourcePermission)
	return perms, nil
}

func (g *GuardedIdentityStore) GetSecretForKey(ctx context.Context, keyID string) (*model.APIKey, error) {
	result, err := g.call(ctx, "get api key", func(ctx context.Context) (any, error) {
		return g.inner.GetSecretForKey(ctx, keyID)
	})
	if err != nil {
		return nil, err
	}
	key, _ := result.(*model.APIKey)
	return key, nil
}
