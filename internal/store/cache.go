package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell/inkwell-backend/internal/metrics"
	"github.com/inkwell/inkwell-backend/pkg/kv"
	_ "github.com/inkwell/inkwell-backend/pkg/kv/memory" // register memory backend
	_ "github.com/inkwell/inkwell-backend/pkg/kv/redis"  // register redis backend
	"go.uber.org/zap"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Key prefixes. Post content is deliberately never cached here; the cache
// only serves auth bookkeeping.
const (
	keyTokenDenied = "ink:auth:denied:"
)

// Cache is a small JSON cache over kv.Store. It prefers Redis and falls
// back to the in-process backend when Redis is unreachable, so a missing
// Redis never blocks local development.
type Cache struct {
	store   kv.Store
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewCache connects to Redis at addr, falling back to the in-memory backend
// on failure.
func NewCache(addr string, logger *zap.SugaredLogger, m *metrics.Metrics) (*Cache, error) {
	store, err := kv.NewStore(kv.Config{Backend: kv.BackendRedis, RedisAddr: addr})
	if err != nil {
		if logger != nil {
			logger.Warnw("Redis unavailable; using in-memory cache", "addr", addr, "error", err)
		}
		store, err = kv.NewStore(kv.Config{Backend: kv.BackendMemory})
		if err != nil {
			return nil, fmt.Errorf("create fallback store: %w", err)
		}
	}

	return &Cache{store: store, logger: logger, metrics: m}, nil
}

// Get unmarshals the value at key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(ctx, key)
		}
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit(ctx, key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return nil
}

// Set stores value at key with the given TTL (zero means no expiry).
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// DenyToken records a revoked token id until its natural expiry.
func (c *Cache) DenyToken(ctx context.Context, jti string, until time.Duration) error {
	if until <= 0 {
		return nil // token already expired, nothing to deny
	}
	if err := c.store.SetString(ctx, keyTokenDenied+jti, "1", until); err != nil {
		return fmt.Errorf("deny token: %w", err)
	}
	return nil
}

// IsTokenDenied reports whether a token id has been revoked.
func (c *Cache) IsTokenDenied(ctx context.Context, jti string) (bool, error) {
	n, err := c.store.Exists(ctx, keyTokenDenied+jti)
	if err != nil {
		return false, fmt.Errorf("check denied token: %w", err)
	}
	return n > 0, nil
}

// Ping checks backend health.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
