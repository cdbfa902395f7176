// Package modelcache keeps deserialized ensembles close to the scorer:
// a Redis layer in front of the Postgres model store, with singleflight
// collapsing concurrent loads of the same model and a circuit breaker
// shielding the store.
package modelcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/marcosfpr/adarank/internal/trainer/store"
	"github.com/marcosfpr/adarank/pkg/config"
	"github.com/marcosfpr/adarank/pkg/metrics"
	pkgredis "github.com/marcosfpr/adarank/pkg/redis"
	"github.com/marcosfpr/adarank/pkg/resilience"
)

const keyPrefix = "model:"

// ModelCache loads models by name, caching them in Redis.
type ModelCache struct {
	store   *store.Store
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache. client may be nil, in which case every lookup goes
// to the store (still deduplicated by singleflight); m may be nil to skip
// Prometheus counters.
func New(st *store.Store, client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *ModelCache {
	return &ModelCache{
		store:   st,
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("model-store", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "model-cache"),
	}
}

// Get returns the named model, from Redis when possible, otherwise loading
// it through the store and populating the cache. The second return reports
// whether the model came from the cache. Concurrent requests for the same
// model share a single store load.
func (c *ModelCache) Get(ctx context.Context, name string) (*store.Model, bool, error) {
	if model, ok := c.fromRedis(ctx, name); ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.ModelCacheHitsTotal.Inc()
		}
		return model, true, nil
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.ModelCacheMissTotal.Inc()
	}

	val, err, _ := c.group.Do(name, func() (interface{}, error) {
		if model, ok := c.fromRedis(ctx, name); ok {
			return model, nil
		}
		var model *store.Model
		err := c.breaker.Execute(func() error {
			var loadErr error
			model, loadErr = c.store.Get(ctx, name)
			return loadErr
		})
		if c.metrics != nil {
			c.metrics.CircuitBreakerState.WithLabelValues("model-store").Set(float64(c.breaker.GetState()))
		}
		if err != nil {
			return nil, err
		}
		c.toRedis(ctx, name, model)
		return model, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*store.Model), false, nil
}

// Invalidate drops the cached copy of one model; the next Get reloads it
// from the store. Called when a model-trained event arrives.
func (c *ModelCache) Invalidate(ctx context.Context, name string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+name); err != nil {
		c.logger.Error("cache invalidate failed", "model", name, "error", err)
		return
	}
	c.logger.Info("model cache invalidated", "model", name)
}

// Stats returns cumulative hit and miss counts.
func (c *ModelCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ModelCache) fromRedis(ctx context.Context, name string) (*store.Model, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, keyPrefix+name)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "model", name, "error", err)
		}
		return nil, false
	}
	var model store.Model
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		c.logger.Error("cache unmarshal failed", "model", name, "error", err)
		return nil, false
	}
	return &model, true
}

func (c *ModelCache) toRedis(ctx context.Context, name string, model *store.Model) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(model)
	if err != nil {
		c.logger.Error("cache marshal failed", "model", name, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+name, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "model", name, "error", err)
	}
}
