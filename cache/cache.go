/*
cache.go - Key-value cache with time-to-live

PURPOSE:
  Statistics are recomputed wholesale and cached for a bounded time.
  Values are opaque bytes; GetOrSet layers JSON encoding on top so callers
  work with their own result types.

SEMANTICS:
  Last write wins. There is no invalidation on writes: a cached value may
  be stale for at most its TTL.

  A failing cache never fails the request. GetOrSet logs the error and
  falls back to computing the value.

IMPLEMENTATIONS:
  - memory.go: process-local map, used when no Redis address is configured
  - redis.go:  shared Redis instance (go-redis/v9)
*/
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache stores byte values with a TTL.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// GetOrSet returns the cached value for key, or computes, stores and
// returns it. Errors from compute are returned and never cached.
func GetOrSet[T any](ctx context.Context, c Cache, log *logrus.Entry, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if raw, ok, err := c.Get(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.WithField("key", key).Warn("discarding undecodable cache entry")
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return v, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return v, nil
}
