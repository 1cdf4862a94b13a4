package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
)

func TestLimiter_FourthRequestExceeded(t *testing.T) {
	now := time.Unix(1_699_999_990, 0)
	l := NewLimiter(ScopeIdentity, 3, time.Minute, db.NewMemoryStore(), nil).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		w, err := l.Admit(ctx, "U1")
		require.NoError(t, err, "request %d", i)
		assert.Equal(t, int64(i), w.Count)
		assert.Equal(t, int64(3-i), w.Remaining())
	}

	w, err := l.Admit(ctx, "U1")
	require.Error(t, err)
	assert.ErrorIs(t, err, echo_errors.ErrRateExceeded)

	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, int64(0), w.Remaining())
	// window started at :00, request at :10 of the same minute
	assert.Equal(t, 50*time.Second, exceeded.RetryAfter)
}

func TestLimiter_SubjectsAreIndependent(t *testing.T) {
	l := NewLimiter(ScopeIdentity, 1, time.Minute, db.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := l.Admit(ctx, "U1")
	require.NoError(t, err)
	_, err = l.Admit(ctx, "U2")
	require.NoError(t, err)
	_, err = l.Admit(ctx, "U1")
	assert.ErrorIs(t, err, echo_errors.ErrRateExceeded)
}

func TestLimiter_WindowRollover(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_030, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := db.NewMemoryStore().WithClock(clock)
	l := NewLimiter(ScopeIdentity, 2, time.Minute, store, nil).WithClock(clock)
	ctx := context.Background()

	_, _ = l.Admit(ctx, "U1")
	_, _ = l.Admit(ctx, "U1")
	_, err := l.Admit(ctx, "U1")
	assert.ErrorIs(t, err, echo_errors.ErrRateExceeded)

	mu.Lock()
	now = now.Add(20 * time.Second)
	mu.Unlock()

	w, err := l.Admit(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
}

func TestLimiter_ConcurrentAdmissionNeverOvershoots(t *testing.T) {
	l := NewLimiter(ScopeIdentity, 10, time.Hour, db.NewMemoryStore(), nil)

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Admit(context.Background(), "U1"); err == nil {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), admitted)
}

func TestLimiter_FallsBackToLocalStore(t *testing.T) {
	primary := &mock.MockStore{}
	primary.On("IncrWindow", testify_mock.Anything, testify_mock.Anything, time.Minute).
		Return(int64(0), echo_errors.ErrStoreUnavailable)

	l := NewLimiter(ScopeIP, 2, time.Minute, primary, db.NewMemoryStore())
	ctx := context.Background()

	_, err := l.Admit(ctx, "10.0.0.1")
	require.NoError(t, err)
	_, err = l.Admit(ctx, "10.0.0.1")
	require.NoError(t, err)
	_, err = l.Admit(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, echo_errors.ErrRateExceeded)
}

func TestLimiter_NoFallbackSurfacesStoreError(t *testing.T) {
	primary := &mock.MockStore{}
	primary.On("IncrWindow", testify_mock.Anything, testify_mock.Anything, time.Minute).
		Return(int64(0), echo_errors.ErrStoreTimeout)

	l := NewLimiter(ScopeIdentity, 2, time.Minute, primary, nil)
	_, err := l.Admit(context.Background(), "U1")
	assert.ErrorIs(t, err, echo_errors.ErrStoreTimeout)
}
