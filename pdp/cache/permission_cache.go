package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	helper_util "github.com/dev-mohitbeniwal/echo/gatekeeper/util/helper"
)

type Options struct {
	TTL time.Duration
	// StaleRetention keeps expired entries around so fail-open can serve them.
	StaleRetention time.Duration
	FailOpen       bool
}

// PermissionCache answers (subject, resource) permission questions from the
// shared store and falls back to the identity store on a miss. Each pair is
// its own key with its own expiry. Keys embed the subject's generation, so
// bumping the generation invalidates every entry of the subject at once,
// including ones still being fetched.
type PermissionCache struct {
	store    db.Store
	upstream pdp_model.IdentityStore
	opts     Options
	group    singleflight.Group
	now      func() time.Time
}

func NewPermissionCache(store db.Store, upstream pdp_model.IdentityStore, opts Options) *PermissionCache {
	return &PermissionCache{store: store, upstream: upstream, opts: opts, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (c *PermissionCache) WithClock(now func() time.Time) *PermissionCache {
	c.now = now
	return c
}

func generationKey(subjectID string) string {
	return db.Key("perm:gen", subjectID)
}

func entryKey(subjectID string, generation int64, resourceKey string) string {
	return db.Key("perm", subjectID, strconv.FormatInt(generation, 10), resourceKey)
}

// Evaluate decides resourceKey against a subject's grants. Any matching deny
// wins; no match is a deny.
func Evaluate(perms []model.ResourcePermission, resourceKey string) bool {
	matched := false
	for _, p := range perms {
		if !helper_util.MatchResourceKey(p.ResourceKey, resourceKey) {
			continue
		}
		if !p.Allowed {
			return false
		}
		matched = true
	}
	return matched
}

// generation returns the subject's current generation, 0 when it was never
// invalidated.
func (c *PermissionCache) generation(ctx context.Context, subjectID string) (int64, error) {
	raw, ok, err := c.store.Get(ctx, generationKey(subjectID))
	if err != nil || !ok {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to decode cache generation: %w", err)
	}
	return gen, nil
}

func (c *PermissionCache) read(ctx context.Context, key string) (*model.PermissionDecision, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var decision model.PermissionDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, fmt.Errorf("failed to decode cached decision: %w", err)
	}
	return &decision, nil
}

func (c *PermissionCache) write(ctx context.Context, key string, decision *model.PermissionDecision) error {
	raw, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	return c.store.Set(ctx, key, raw, c.opts.TTL+c.opts.StaleRetention)
}

func (c *PermissionCache) cacheError(msg string, err error, subjectID string) {
	metrics.DependencyErrorsTotal.WithLabelValues("permission-cache").Inc()
	logger.Error(msg,
		zap.Error(err),
		zap.String("class", "dependency"),
		zap.String("subject_id", subjectID))
}

// fetch asks the identity store and caches the answer under key. An empty
// key means the generation is unknown and nothing is cached.
func (c *PermissionCache) fetch(ctx context.Context, subjectID, resourceKey, key string) (*model.PermissionDecision, error) {
	perms, err := c.upstream.GetPermissions(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, echo_errors.ErrPermissionLookupUnavailable) {
			err = fmt.Errorf("%w: %w", echo_errors.ErrPermissionLookupUnavailable, err)
		}
		return nil, err
	}

	decision := &model.PermissionDecision{
		SubjectID:   subjectID,
		ResourceKey: resourceKey,
		Allowed:     Evaluate(perms, resourceKey),
		CachedAt:    c.now(),
		TTL:         c.opts.TTL,
	}
	if key == "" {
		return decision, nil
	}
	if err := c.write(ctx, key, decision); err != nil {
		c.cacheError("Failed to cache permission decision", err, subjectID)
	}
	return decision, nil
}

// Lookup returns the decision for (subjectID, resourceKey) and where it came
// from. Concurrent misses for the same pair share one upstream call.
func (c *PermissionCache) Lookup(ctx context.Context, subjectID, resourceKey string) (*model.PermissionDecision, pdp_model.Source, error) {
	var cached *model.PermissionDecision
	gen, err := c.generation(ctx, subjectID)
	key := entryKey(subjectID, gen, resourceKey)
	if err == nil {
		cached, err = c.read(ctx, key)
	} else {
		key = ""
	}
	if err != nil {
		c.cacheError("Permission cache read failed, treating as miss", err, subjectID)
	}
	if cached != nil && !cached.Expired(c.now()) {
		metrics.PermissionCacheTotal.WithLabelValues("hit").Inc()
		return cached, pdp_model.SourceCache, nil
	}
	metrics.PermissionCacheTotal.WithLabelValues("miss").Inc()

	flight := entryKey(subjectID, gen, resourceKey)
	if key == "" {
		flight = "nocache\x00" + flight
	}
	ch := c.group.DoChan(flight, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), subjectID, resourceKey, key)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: fmt.Errorf("%w: %w", echo_errors.ErrPermissionLookupUnavailable, ctx.Err())}
	}
	if res.Shared {
		metrics.PermissionCacheTotal.WithLabelValues("coalesced").Inc()
	}

	if res.Err != nil {
		if c.opts.FailOpen && cached != nil {
			metrics.PermissionCacheTotal.WithLabelValues("stale").Inc()
			logger.Warn("Identity store unavailable, serving last known decision",
				zap.Error(res.Err),
				zap.String("subject_id", subjectID),
				zap.String("resource_key", resourceKey),
				zap.Time("cached_at", cached.CachedAt))
			return cached, pdp_model.SourceStale, nil
		}
		return nil, "", res.Err
	}

	return res.Val.(*model.PermissionDecision), pdp_model.SourceUpstream, nil
}

// Invalidate drops one cached (subject, resource) decision. A fetch for the
// same pair already in flight may still repopulate it; InvalidateSubject has
// no such window.
func (c *PermissionCache) Invalidate(ctx context.Context, subjectID, resourceKey string) error {
	gen, err := c.generation(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to invalidate permission: %w", err)
	}
	key := entryKey(subjectID, gen, resourceKey)
	c.group.Forget(key)
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate permission: %w", err)
	}
	logger.Info("Permission cache entry invalidated",
		zap.String("subject_id", subjectID),
		zap.String("resource_key", resourceKey))
	return nil
}

// InvalidateSubject moves the subject to a new generation. Entries of older
// generations are never read again and age out on their own expiry.
func (c *PermissionCache) InvalidateSubject(ctx context.Context, subjectID string) error {
	gen, err := c.store.IncrWindow(ctx, generationKey(subjectID), 0)
	if err != nil {
		return fmt.Errorf("failed to invalidate subject permissions: %w", err)
	}
	logger.Info("Permission cache invalidated for subject",
		zap.String("subject_id", subjectID),
		zap.Int64("generation", gen))
	return nil
}
