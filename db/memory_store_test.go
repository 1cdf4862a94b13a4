package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_GetSetExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	clock.Advance(time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SetNX(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "nonce", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "nonce", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, err = s.SetNX(ctx, "nonce", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be claimed again")
}

func TestMemoryStore_IncrWindowConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrWindow(ctx, "rl", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := s.IncrWindow(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
}

func TestMemoryStore_IncrWindowWithoutTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	_, err := s.IncrWindow(ctx, "gen", 0)
	require.NoError(t, err)
	clock.Advance(365 * 24 * time.Hour)
	count, err := s.IncrWindow(ctx, "gen", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "nonce:2:K1:3:abc", Key("nonce", "K1", "abc"))
	assert.NotEqual(t, Key("nonce", "a:b", "c"), Key("nonce", "a", "b:c"))
	assert.Equal(t, "perm:gen", Key("perm:gen"))
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	_ = s.Set(ctx, "short", []byte("x"), time.Second)
	_ = s.Set(ctx, "long", []byte("x"), time.Hour)
	_ = s.Set(ctx, "forever", []byte("x"), 0)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 2, s.Len())
}
