package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTimeout bounds one counter round-trip when no explicit
// timeout is configured.
const DefaultRedisTimeout = 2 * time.Second

// RedisCounterStore keeps one sorted set per rate-limit key, scored by
// hit timestamp. Prune, insert, count, and expiry run in a single
// transactional pipeline so concurrent callers cannot double-count or
// lose updates.
type RedisCounterStore struct {
	client  *redis.Client
	timeout time.Duration
	seq     atomic.Uint64
}

// NewRedisCounterStore connects to Redis and verifies the connection.
func NewRedisCounterStore(redisURL string, timeout time.Duration) (*RedisCounterStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultRedisTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCounterStore{client: client, timeout: timeout}, nil
}

// NewRedisCounterStoreFromClient wraps an existing client. Used by tests
// and by callers that share one connection pool.
func NewRedisCounterStoreFromClient(client *redis.Client, timeout time.Duration) *RedisCounterStore {
	if timeout <= 0 {
		timeout = DefaultRedisTimeout
	}
	return &RedisCounterStore{client: client, timeout: timeout}
}

// Increment implements CounterStore.
//
// Entries with score <= now-window are removed before the new hit is
// added, making the window a strict "after" cutoff: a hit landing exactly
// window after the first one no longer counts the first.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (int64, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cutoff := now.Add(-window).UnixNano()

	// Member must be unique per hit even when two hits share a
	// nanosecond timestamp, otherwise ZAdd would overwrite one of them.
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return card.Val(), now.Add(window), nil
}

// Degraded always reports false: counts are shared across instances.
func (s *RedisCounterStore) Degraded() bool { return false }

// Ping implements CounterStore.
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}
