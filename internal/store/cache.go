package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region config

// CacheConfig holds read-through cache settings.
// Env overrides handled by the config package.
type CacheConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// #endregion config

// #region cached-store

// CachedStore decorates a Store with a Redis read-through cache. A hypothesis
// is only ever mutated by the single worker owning its entity, so
// last-writer-wins on the cached value is safe. Cache failures degrade to
// the inner store; they never fail the run.
type CachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedStore connects to Redis and wraps the inner store.
func NewCachedStore(inner Store, config CacheConfig) *CachedStore {
	return &CachedStore{
		inner: inner,
		rdb:   redis.NewClient(&redis.Options{Addr: config.Addr}),
		ttl:   config.TTL,
	}
}

// NewCachedStoreWithClient wraps the inner store using an existing client.
// Used for testing against miniature servers.
func NewCachedStoreWithClient(inner Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl}
}

// Close releases the Redis connection.
func (c *CachedStore) Close() error {
	return c.rdb.Close()
}

func cacheKey(entityID string, category ledger.Category) string {
	return fmt.Sprintf("scout:hyp:%s:%s", entityID, category)
}

// #endregion cached-store

// #region get

// GetHypothesis serves from Redis when possible, falling back to the inner
// store and filling the cache on a miss.
func (c *CachedStore) GetHypothesis(ctx context.Context, entityID string, category ledger.Category) (*ledger.Hypothesis, error) {
	val, err := c.rdb.Get(ctx, cacheKey(entityID, category)).Result()
	if err == nil {
		var h ledger.Hypothesis
		if err := json.Unmarshal([]byte(val), &h); err == nil {
			return &h, nil
		}
		// Unreadable cache value: fall through and overwrite below.
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("[CACHE] get %s/%s: %v", entityID, category, err)
	}

	h, err := c.inner.GetHypothesis(ctx, entityID, category)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, h)
	return h, nil
}

// GetBatch reads the whole set with one MGET, then fetches misses from the
// inner store.
func (c *CachedStore) GetBatch(ctx context.Context, entityID string, categories []ledger.Category) (map[ledger.Category]*ledger.Hypothesis, error) {
	keys := make([]string, len(categories))
	for i, cat := range categories {
		keys[i] = cacheKey(entityID, cat)
	}

	out := make(map[ledger.Category]*ledger.Hypothesis, len(categories))
	var misses []ledger.Category

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("[CACHE] mget %s: %v", entityID, err)
		misses = categories
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				misses = append(misses, categories[i])
				continue
			}
			var h ledger.Hypothesis
			if err := json.Unmarshal([]byte(s), &h); err != nil {
				misses = append(misses, categories[i])
				continue
			}
			out[categories[i]] = &h
		}
	}

	if len(misses) > 0 {
		fromInner, err := GetAll(ctx, c.inner, entityID, misses)
		if err != nil {
			return nil, err
		}
		for cat, h := range fromInner {
			out[cat] = h
			c.fill(ctx, h)
		}
	}
	return out, nil
}

// #endregion get

// #region put

// PutHypothesis writes through to the inner store, then updates the cache.
func (c *CachedStore) PutHypothesis(ctx context.Context, h *ledger.Hypothesis) error {
	if err := c.inner.PutHypothesis(ctx, h); err != nil {
		return err
	}
	c.fill(ctx, h)
	return nil
}

// PutBatch writes through, then updates the cache in one pipeline.
func (c *CachedStore) PutBatch(ctx context.Context, hs []*ledger.Hypothesis) error {
	if err := PutAll(ctx, c.inner, hs); err != nil {
		return err
	}
	pipe := c.rdb.Pipeline()
	for _, h := range hs {
		b, err := json.Marshal(h)
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(h.EntityID, h.Category), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[CACHE] pipeline set: %v", err)
	}
	return nil
}

func (c *CachedStore) fill(ctx context.Context, h *ledger.Hypothesis) {
	b, err := json.Marshal(h)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(h.EntityID, h.Category), b, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] set %s/%s: %v", h.EntityID, h.Category, err)
	}
}

// #endregion put
