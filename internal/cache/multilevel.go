package cache

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

type MultiLevelConfig struct {
	// LocalTTL caps how long an entry lives in L1. Other instances may
	// change L2 behind our back, so L1 copies stay short-lived.
	LocalTTL        time.Duration
	LocalMaxEntries int
	Breaker         *CircuitBreakerConfig
}

// MultiLevelCache reads L1 (process memory) first, then L2 (Redis). L2 is
// optional and sits behind a circuit breaker; its failures are logged and
// counted but never returned to callers of Get.
type MultiLevelCache struct {
	l1       *MemoryCache
	l2       Cache
	breaker  *CircuitBreaker
	metrics  *CacheMetrics
	localTTL time.Duration
	logger   *log.Logger
}

var _ Cache = (*MultiLevelCache)(nil)

func NewMultiLevelCache(l2 Cache, config MultiLevelConfig, logger *log.Logger) *MultiLevelCache {
	if config.LocalTTL <= 0 {
		config.LocalTTL = 30 * time.Second
	}
	if config.LocalMaxEntries <= 0 {
		config.LocalMaxEntries = 1000
	}
	return &MultiLevelCache{
		l1:       NewMemoryCache(config.LocalMaxEntries),
		l2:       l2,
		breaker:  NewCircuitBreaker(config.Breaker),
		metrics:  NewCacheMetrics(),
		localTTL: config.LocalTTL,
		logger:   logger,
	}
}

func (c *MultiLevelCache) Metrics() *CacheMetrics {
	return c.metrics
}

func (c *MultiLevelCache) Breaker() *CircuitBreaker {
	return c.breaker
}

func (c *MultiLevelCache) localTTLFor(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.localTTL {
		return c.localTTL
	}
	return ttl
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		c.metrics.RecordHit()
		return nil
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	err := c.callL2(func() error { return c.l2.Get(ctx, key, dest) })
	switch {
	case err == nil:
		c.metrics.RecordHit()
		c.metrics.RecordL2Hit()
		_ = c.l1.Set(ctx, key, dest, c.localTTL)
		return nil
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordMiss()
		return ErrCacheMiss
	default:
		c.metrics.RecordMiss()
		c.l2Failed("get", key, err)
		return ErrCacheMiss
	}
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.localTTLFor(ttl)); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordSet()

	if c.l2 == nil {
		return nil
	}
	if err := c.callL2(func() error { return c.l2.Set(ctx, key, value, ttl) }); err != nil {
		c.l2Failed("set", key, err)
		return err
	}
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	if err := c.callL2(func() error { return c.l2.Delete(ctx, keys...) }); err != nil {
		c.l2Failed("delete", "", err)
		return err
	}
	return nil
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	_ = c.l1.DeletePattern(ctx, pattern)
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	if err := c.callL2(func() error { return c.l2.DeletePattern(ctx, pattern) }); err != nil {
		c.l2Failed("delete_pattern", pattern, err)
		return err
	}
	return nil
}

// callL2 routes a call through the breaker. Cache misses are a normal
// answer and do not count as failures.
func (c *MultiLevelCache) callL2(fn func() error) error {
	var miss bool
	err := c.breaker.Execute(func() error {
		err := fn()
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		return err
	})
	if miss && err == nil {
		return ErrCacheMiss
	}
	return err
}

func (c *MultiLevelCache) l2Failed(op, key string, err error) {
	if errors.Is(err, ErrCircuitBreakerOpen) {
		c.metrics.RecordBypass()
		return
	}
	c.metrics.RecordError()
	if c.logger != nil {
		c.logger.Warn("l2 cache call failed", "op", op, "key", key, "err", err)
	}
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	if err := c.l2.Health(ctx); err != nil {
		return errors.Join(ErrCacheDown, err)
	}
	return nil
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":      c.l1.Stats(),
		"metrics": c.metrics.Snapshot(),
		"breaker": c.breaker.GetStats(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}
	return stats
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
