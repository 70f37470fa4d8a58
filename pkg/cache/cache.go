package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/entrega-app/entrega-backend/pkg/config"
	"github.com/entrega-app/entrega-backend/pkg/logger"
	"github.com/entrega-app/entrega-backend/pkg/redis"
)

// Store is the key-value surface the cache layer consumes.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// Cache implements the cache-aside pattern over a shared key-value store.
// Every operation is best-effort: a failing or unreachable store degrades to
// the source of truth, never to an error surfaced to the caller. Values are
// always serialized snapshots deserialized into one canonical typed value.
type Cache struct {
	store Store
	logg  *logger.Logger
	cfg   config.CacheConfig
}

// New builds the cache layer. A nil store yields a disabled cache whose
// reads always miss and whose writes are no-ops.
func New(store Store, logg *logger.Logger, cfg config.CacheConfig) *Cache {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	return &Cache{store: store, logg: logg, cfg: cfg}
}

// GetJSON loads the snapshot at key into dest. Returns false on miss, on a
// disabled cache, or on any store/decode failure.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil || c.store == nil {
		return false
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	raw, err := c.store.Get(opCtx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(ctx, key, "cache read failed", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// A corrupt entry is dropped so the next read repopulates it.
		c.warn(ctx, key, "cache entry corrupt, evicting", err)
		c.Invalidate(ctx, key)
		return false
	}
	return true
}

// SetJSON stores a serialized snapshot of value under key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.warn(ctx, key, "cache marshal failed", err)
		return
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Set(opCtx, key, string(payload), ttl); err != nil {
		c.warn(ctx, key, "cache write failed", err)
	}
}

// Invalidate removes the provided keys. Failures are swallowed; an entry
// that survives simply expires at its TTL.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.store == nil || len(keys) == 0 {
		return
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Del(opCtx, keys...); err != nil {
		c.warn(ctx, keys[0], "cache invalidation failed", err)
	}
}

// EntityTTL covers slow-changing entities (products, users, stores).
func (c *Cache) EntityTTL() time.Duration {
	if c == nil {
		return 5 * time.Minute
	}
	return ttlOr(c.cfg.EntityTTL, 5*time.Minute)
}

// OrderTTL covers individual order snapshots.
func (c *Cache) OrderTTL() time.Duration {
	if c == nil {
		return time.Minute
	}
	return ttlOr(c.cfg.OrderTTL, time.Minute)
}

// VolatileListTTL covers highly dynamic aggregates (available orders,
// active drivers).
func (c *Cache) VolatileListTTL() time.Duration {
	if c == nil {
		return 30 * time.Second
	}
	return ttlOr(c.cfg.VolatileListTTL, 30*time.Second)
}

// DriverDeliveryTTL covers per-driver delivery listings.
func (c *Cache) DriverDeliveryTTL() time.Duration {
	if c == nil {
		return time.Minute
	}
	return ttlOr(c.cfg.DriverDeliveryTTL, time.Minute)
}

// DriverStatsTTL covers aggregated driver statistics.
func (c *Cache) DriverStatsTTL() time.Duration {
	if c == nil {
		return 5 * time.Minute
	}
	return ttlOr(c.cfg.DriverStatsTTL, 5*time.Minute)
}

func ttlOr(configured, fallback time.Duration) time.Duration {
	if configured <= 0 {
		return fallback
	}
	return configured
}

func (c *Cache) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.cfg.OpTimeout)
}

func (c *Cache) warn(ctx context.Context, key, msg string, err error) {
	if c.logg == nil {
		return
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{"cache_key": key, "cache_err": err.Error()})
	c.logg.Warn(logCtx, msg)
}
