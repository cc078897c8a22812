// Package ratelimit bounds the request rate per client identity using a
// sliding window: only requests within the trailing window count toward
// the limit, recomputed on every check.
package ratelimit

import (
	"context"
	"time"
)

// Stats is a read-only snapshot of tracked state. Counts may include
// timestamps that are stale but not yet cleaned up.
type Stats struct {
	ActiveClients   int `json:"activeIdentityCount"`
	TrackedRequests int `json:"totalTrackedRequests"`
}

// Limiter decides whether a client identity may proceed. The in-memory
// implementation never returns an error; the Redis-backed one surfaces
// store failures and leaves the policy to the caller.
type Limiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}

// Config holds the limiter tuning knobs. Zero values are replaced by
// the defaults below.
type Config struct {
	Window          time.Duration
	MaxRequests     int
	CleanupInterval time.Duration
	Shards          int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = 100
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.Shards <= 0 {
		c.Shards = 16
	}
	return c
}
