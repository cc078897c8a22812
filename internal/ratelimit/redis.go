package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"codepath-guard/internal/client"
)

const redisKeyPrefix = "rate_limit:"

// slidingWindowScript removes expired members, counts the rest and
// conditionally records the new timestamp, all atomically on the Redis
// side. Member values carry a nanosecond suffix so two requests landing
// in the same second are not collapsed into one sorted-set entry.
const slidingWindowScript = `
    local key = KEYS[1]
    local now = tonumber(ARGV[1])
    local window_start = tonumber(ARGV[2])
    local limit = tonumber(ARGV[3])

    redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

    local current_count = redis.call('ZCARD', key)

    if current_count < limit then
        redis.call('ZADD', key, now, ARGV[5])
        redis.call('EXPIRE', key, math.ceil(tonumber(ARGV[4])))
        return {1, current_count + 1}
    else
        return {0, current_count}
    end
`

// RedisLimiter shares one sliding window across processes. Policy for
// store failures belongs to the middleware, which fails open.
type RedisLimiter struct {
	client *client.RedisClient
	config Config
	logger *zap.Logger
}

func NewRedisLimiter(redisClient *client.RedisClient, cfg Config, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: redisClient,
		config: cfg.withDefaults(),
		logger: logger,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		identity = "unknown"
	}

	now := time.Now()
	windowStart := now.Add(-l.config.Window).Unix()
	member := fmt.Sprintf("%d", now.UnixNano())

	result, err := l.client.Eval(ctx, slidingWindowScript,
		[]string{redisKeyPrefix + identity},
		now.Unix(), windowStart, l.config.MaxRequests, int(l.config.Window.Seconds()), member)
	if err != nil {
		return false, fmt.Errorf("failed to execute sliding window rate limit: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return false, fmt.Errorf("unexpected result format from sliding window script")
	}

	allowed := resultSlice[0].(int64) == 1

	l.logger.Debug("sliding window rate limit check",
		zap.String("identity", identity),
		zap.Bool("allowed", allowed),
		zap.Int64("current_count", resultSlice[1].(int64)),
		zap.Int("limit", l.config.MaxRequests))

	return allowed, nil
}

// Stats scans the limiter keyspace. Expiry handles stale entries, so
// there is no explicit cleanup loop for this backend.
func (l *RedisLimiter) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	cursor := uint64(0)
	for {
		keys, nextCursor, err := l.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to scan rate limit keys: %w", err)
		}

		for _, key := range keys {
			count, err := l.client.ZCard(ctx, key)
			if err != nil {
				continue
			}
			stats.ActiveClients++
			stats.TrackedRequests += int(count)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}
