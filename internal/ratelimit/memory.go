package ratelimit

import (
	"context"
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

// MemoryLimiter keeps per-identity timestamp windows in sharded maps.
// A shard mutex serializes the read-modify-write for every identity it
// owns, so concurrent checks for one identity can never over-admit.
// State lives in process memory only: it resets on restart, which is
// acceptable for abuse deterrence but not for strict quota accounting.
type MemoryLimiter struct {
	config Config
	logger *zap.Logger

	shards     []*shard
	hasherPool sync.Pool

	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryLimiter builds a limiter; Start must be called to run the
// periodic cleanup and Stop to cancel it at shutdown.
func NewMemoryLimiter(cfg Config, logger *zap.Logger) *MemoryLimiter {
	cfg = cfg.withDefaults()

	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{windows: make(map[string][]time.Time)}
	}

	return &MemoryLimiter{
		config: cfg,
		logger: logger,
		shards: shards,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the cleanup loop. It runs until Stop is called.
func (l *MemoryLimiter) Start() {
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := l.Cleanup()
				if removed > 0 {
					l.logger.Debug("rate limit cleanup completed",
						zap.Int("identities_removed", removed))
				}
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop cancels the cleanup loop. Idempotent.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		<-l.done
	})
}

// Allow reports whether the identity may make another request now.
// Rejections do not record a timestamp. Never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, identity string) (bool, error) {
	if identity == "" {
		identity = "unknown"
	}

	now := l.now()
	cutoff := now.Add(-l.config.Window)
	s := l.shardFor(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	recent := pruneBefore(s.windows[identity], cutoff)
	if len(recent) >= l.config.MaxRequests {
		s.windows[identity] = recent
		return false, nil
	}

	s.windows[identity] = append(recent, now)
	return true, nil
}

// Cleanup drops timestamps older than the window and removes identities
// whose windows become empty, bounding memory growth from one-time
// visitors. Returns the number of identities removed.
func (l *MemoryLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.config.Window)
	removed := 0

	for _, s := range l.shards {
		s.mu.Lock()
		for identity, window := range s.windows {
			recent := pruneBefore(window, cutoff)
			if len(recent) == 0 {
				delete(s.windows, identity)
				removed++
			} else {
				s.windows[identity] = recent
			}
		}
		s.mu.Unlock()
	}

	return removed
}

// Stats sums the current, possibly pre-cleanup, window counts.
func (l *MemoryLimiter) Stats(_ context.Context) (Stats, error) {
	var stats Stats
	for _, s := range l.shards {
		s.mu.Lock()
		stats.ActiveClients += len(s.windows)
		for _, window := range s.windows {
			stats.TrackedRequests += len(window)
		}
		s.mu.Unlock()
	}
	return stats, nil
}

func (l *MemoryLimiter) shardFor(identity string) *shard {
	hasher := l.hasherPool.Get().(hash.Hash64)
	hasher.Reset()
	_, _ = hasher.Write([]byte(identity))
	idx := hasher.Sum64() % uint64(len(l.shards))
	l.hasherPool.Put(hasher)
	return l.shards[idx]
}

// pruneBefore keeps only timestamps at or after the cutoff. Windows are
// appended in chronological order, so the first retained index is found
// with a single forward scan.
func pruneBefore(window []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(window) && window[idx].Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return window
	}
	return append([]time.Time(nil), window[idx:]...)
}
