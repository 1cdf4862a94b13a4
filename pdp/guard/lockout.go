// Package guard holds the advisory request guards: per-key lockout after
// repeated credential failures and the client address blocklist.
package guard

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

// LockedError is returned while a subject is locked. It unwraps to
// ErrAccountLocked.
type LockedError struct {
	Subject     string
	LockedUntil time.Time
	RetryAfter  time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s locked until %s", e.Subject, e.LockedUntil.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error {
	return echo_errors.ErrAccountLocked
}

// Lockout counts credential failures per subject in a fixed window of the
// lock duration and locks the subject once maxAttempts is reached.
type Lockout struct {
	store       db.Store
	maxAttempts int64
	duration    time.Duration
	now         func() time.Time
}

func NewLockout(store db.Store, maxAttempts int, duration time.Duration) *Lockout {
	return &Lockout{store: store, maxAttempts: int64(maxAttempts), duration: duration, now: time.Now}
}

func (l *Lockout) WithClock(now func() time.Time) *Lockout {
	l.now = now
	return l
}

func attemptsKey(subject string) string {
	return db.Key("lockout:attempts", subject)
}

func lockKey(subject string) string {
	return db.Key("lockout", subject)
}

// Check returns a *LockedError while subject is locked, nil otherwise.
func (l *Lockout) Check(ctx context.Context, subject string) error {
	record, err := l.Status(ctx, subject)
	if err != nil || record == nil {
		return err
	}
	return &LockedError{
		Subject:     subject,
		LockedUntil: record.LockedUntil,
		RetryAfter:  record.LockedUntil.Sub(l.now()),
	}
}

// Status returns the active lock on subject, or nil when it is not locked.
func (l *Lockout) Status(ctx context.Context, subject string) (*model.LockRecord, error) {
	raw, ok, err := l.store.Get(ctx, lockKey(subject))
	if err != nil {
		return nil, fmt.Errorf("lockout: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var record model.LockRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("lockout: corrupt record for %s: %w", subject, err)
	}
	if !l.now().Before(record.LockedUntil) {
		return nil, nil
	}
	return &record, nil
}

// RecordFailure counts one failed attempt and reports whether it locked the
// subject.
func (l *Lockout) RecordFailure(ctx context.Context, subject, clientIP string) (bool, error) {
	count, err := l.store.IncrWindow(ctx, attemptsKey(subject), l.duration)
	if err != nil {
		return false, fmt.Errorf("lockout: %w", err)
	}
	if count < l.maxAttempts {
		return false, nil
	}

	metrics.LockoutsTotal.Inc()
	logger.Warn("Locking subject after repeated failures",
		zap.String("subject", subject),
		zap.Int64("attempts", count),
		zap.String("client_ip", clientIP))
	if _, err := l.Lock(ctx, subject, fmt.Sprintf("%d failed attempts", count), clientIP, l.duration); err != nil {
		return false, err
	}
	return true, nil
}

// Lock locks subject for duration, or for the configured lock duration when
// duration is not positive.
func (l *Lockout) Lock(ctx context.Context, subject, reason, clientIP string, duration time.Duration) (*model.LockRecord, error) {
	if duration <= 0 {
		duration = l.duration
	}
	now := l.now().UTC()
	record := &model.LockRecord{
		Subject:     subject,
		Reason:      reason,
		ClientIP:    clientIP,
		LockedAt:    now,
		LockedUntil: now.Add(duration),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lock record: %w", err)
	}
	if err := l.store.Set(ctx, lockKey(subject), raw, duration); err != nil {
		return nil, fmt.Errorf("lockout: %w", err)
	}
	return record, nil
}

// Unlock clears the lock and the failure count of subject.
func (l *Lockout) Unlock(ctx context.Context, subject string) error {
	if err := l.store.Delete(ctx, lockKey(subject), attemptsKey(subject)); err != nil {
		return fmt.Errorf("lockout: %w", err)
	}
	return nil
}
