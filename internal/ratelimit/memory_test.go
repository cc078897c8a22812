package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestLimiter builds a limiter with a controllable clock. The
// cleanup loop is not started; tests call Cleanup directly.
func newTestLimiter(cfg Config) (*MemoryLimiter, *time.Time) {
	limiter := NewMemoryLimiter(cfg, zap.NewNop())
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestSlidingWindowLimit(t *testing.T) {
	limiter, clock := newTestLimiter(Config{Window: time.Minute, MaxRequests: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit must be rejected")

	// Past the window the identity is admitted again.
	*clock = clock.Add(time.Minute + time.Second)
	allowed, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSlidingWindowPartialExpiry(t *testing.T) {
	limiter, clock := newTestLimiter(Config{Window: time.Minute, MaxRequests: 2})
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "10.0.0.2")
	assert.True(t, allowed)

	*clock = clock.Add(40 * time.Second)
	allowed, _ = limiter.Allow(ctx, "10.0.0.2")
	assert.True(t, allowed)

	// First timestamp is now outside the window, the second is not.
	*clock = clock.Add(30 * time.Second)
	allowed, _ = limiter.Allow(ctx, "10.0.0.2")
	assert.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "10.0.0.2")
	assert.False(t, allowed)
}

func TestRejectionDoesNotRecordTimestamp(t *testing.T) {
	limiter, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 1})
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "10.0.0.3")
	assert.True(t, allowed)

	for i := 0; i < 5; i++ {
		allowed, _ = limiter.Allow(ctx, "10.0.0.3")
		assert.False(t, allowed)
	}

	stats, err := limiter.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TrackedRequests)
}

func TestCleanupPurgesStaleIdentities(t *testing.T) {
	limiter, clock := newTestLimiter(Config{Window: time.Minute, MaxRequests: 10})
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "1.1.1.1")
	_, _ = limiter.Allow(ctx, "2.2.2.2")

	stats, _ := limiter.Stats(ctx)
	assert.Equal(t, 2, stats.ActiveClients)

	*clock = clock.Add(2 * time.Minute)
	removed := limiter.Cleanup()
	assert.Equal(t, 2, removed)

	stats, _ = limiter.Stats(ctx)
	assert.Equal(t, 0, stats.ActiveClients)
	assert.Equal(t, 0, stats.TrackedRequests)
}

func TestEmptyIdentityFallsBackToUnknown(t *testing.T) {
	limiter, _ := newTestLimiter(Config{Window: time.Minute, MaxRequests: 10})
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "")
	require.NoError(t, err)
	assert.True(t, allowed)
	_, _ = limiter.Allow(ctx, "unknown")

	// Both land in the same bucket.
	stats, _ := limiter.Stats(ctx)
	assert.Equal(t, 1, stats.ActiveClients)
	assert.Equal(t, 2, stats.TrackedRequests)
}

func TestConcurrentSameIdentityNeverOverAdmits(t *testing.T) {
	const limit = 50
	const attempts = 200

	limiter := NewMemoryLimiter(Config{Window: time.Minute, MaxRequests: limit}, zap.NewNop())
	ctx := context.Background()

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := limiter.Allow(ctx, "198.51.100.7")
			if err == nil && allowed {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), admitted)
}

func TestStartStopIdempotent(t *testing.T) {
	limiter := NewMemoryLimiter(Config{
		Window:          time.Minute,
		MaxRequests:     10,
		CleanupInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	limiter.Start()
	time.Sleep(30 * time.Millisecond)
	limiter.Stop()
	limiter.Stop()
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 15*time.Minute, cfg.Window)
	assert.Equal(t, 100, cfg.MaxRequests)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 16, cfg.Shards)
}
