package guard

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

// Blocklist denies client addresses until their entry expires.
type Blocklist struct {
	store db.Store
	now   func() time.Time
}

func NewBlocklist(store db.Store) *Blocklist {
	return &Blocklist{store: store, now: time.Now}
}

func (b *Blocklist) WithClock(now func() time.Time) *Blocklist {
	b.now = now
	return b
}

// NormalizeIP returns the canonical text form of ip, so "::ffff:10.0.0.1"
// and "10.0.0.1" share one entry.
func NormalizeIP(ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not an ip address", echo_errors.ErrInvalidSecurityData, ip)
	}
	return addr.Unmap().String(), nil
}

func blockKey(ip string) string {
	if normalized, err := NormalizeIP(ip); err == nil {
		ip = normalized
	}
	return db.Key("blocklist:ip", ip)
}

func (b *Blocklist) Block(ctx context.Context, ip, reason, actor string, ttl time.Duration) (*model.BlockRecord, error) {
	normalized, err := NormalizeIP(ip)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", echo_errors.ErrInvalidSecurityData)
	}
	now := b.now().UTC()
	record := &model.BlockRecord{
		IP:           normalized,
		Reason:       reason,
		BlockedBy:    actor,
		BlockedAt:    now,
		BlockedUntil: now.Add(ttl),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode block record: %w", err)
	}
	if err := b.store.Set(ctx, blockKey(normalized), raw, ttl); err != nil {
		return nil, fmt.Errorf("blocklist: %w", err)
	}
	return record, nil
}

func (b *Blocklist) Unblock(ctx context.Context, ip string) error {
	if err := b.store.Delete(ctx, blockKey(ip)); err != nil {
		return fmt.Errorf("blocklist: %w", err)
	}
	return nil
}

// Status returns the active block on ip, or nil.
func (b *Blocklist) Status(ctx context.Context, ip string) (*model.BlockRecord, error) {
	raw, ok, err := b.store.Get(ctx, blockKey(ip))
	if err != nil {
		return nil, fmt.Errorf("blocklist: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var record model.BlockRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("blocklist: corrupt record for %s: %w", ip, err)
	}
	if !b.now().Before(record.BlockedUntil) {
		return nil, nil
	}
	return &record, nil
}

// Check returns ErrIPBlocked while ip is blocked.
func (b *Blocklist) Check(ctx context.Context, ip string) error {
	record, err := b.Status(ctx, ip)
	if err != nil || record == nil {
		return err
	}
	return fmt.Errorf("%w: %s until %s", echo_errors.ErrIPBlocked, record.IP, record.BlockedUntil.Format(time.RFC3339))
}
