package verifier

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

// ReplayGuard remembers (key, nonce) pairs for twice the clock skew plus one
// second, which outlives every timestamp the api key verifier still accepts,
// including the inclusive edge of the window.
type ReplayGuard struct {
	store db.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewReplayGuard(store db.Store, skew time.Duration) *ReplayGuard {
	return &ReplayGuard{store: store, ttl: 2*skew + time.Second, now: time.Now}
}

func nonceKey(keyID, nonce string) string {
	return db.Key("nonce", keyID, nonce)
}

// CheckAndRecord records the nonce, or returns ErrReplayDetected if it was
// already seen. A store failure is returned as is and must deny the request.
func (g *ReplayGuard) CheckAndRecord(ctx context.Context, keyID, nonce string) error {
	record, err := json.Marshal(model.NonceRecord{KeyID: keyID, Nonce: nonce, SeenAt: g.now()})
	if err != nil {
		return fmt.Errorf("failed to encode nonce record: %w", err)
	}

	first, err := g.store.SetNX(ctx, nonceKey(keyID, nonce), record, g.ttl)
	if err != nil {
		return fmt.Errorf("replay guard: %w", err)
	}
	if !first {
		metrics.ReplaysDetectedTotal.Inc()
		logger.Warn("Replay detected", zap.String("keyID", keyID), zap.String("nonce", nonce))
		return echo_errors.ErrReplayDetected
	}
	return nil
}
