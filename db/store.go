// gatekeeper/db/store.go
package db

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Store is the shared key-value store behind the permission cache, the
// rate limiter and the replay guard. Every method is a single atomic
// operation on the backing store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// IncrWindow increments the counter at key, arms the ttl on the first
	// increment, and returns the new count. A ttl <= 0 leaves the counter
	// without expiry.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// Key joins a namespace and caller-supplied parts into a store key. Each
// part is length-prefixed, so parts containing ':' can never collide.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
