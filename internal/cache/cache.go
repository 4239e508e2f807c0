package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

// Cache stores JSON-serialisable values under string keys. Patterns use
// Redis glob syntax (`*`, `?`, `[...]`).
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Health(ctx context.Context) error
	Stats() map[string]interface{}
	Close() error
}
