package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is a process-local cache. Values are stored as JSON so callers
// never share mutable state with the cache.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most maxEntries keys; zero means
// unbounded.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return ErrCacheMiss
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		if current, still := m.entries[key]; still && current.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}
	m.entries[key] = entry
	return nil
}

// evictLocked drops expired entries and, if the cache is still full, the
// entry that would expire first. Entries without a TTL go last.
func (m *MemoryCache) evictLocked() {
	now := m.now()
	var (
		victim   string
		deadline time.Time
	)
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			continue
		}
		switch {
		case victim == "":
			victim, deadline = k, e.expiresAt
		case e.expiresAt.IsZero():
		case deadline.IsZero() || e.expiresAt.Before(deadline):
			victim, deadline = k, e.expiresAt
		}
	}
	if len(m.entries) >= m.maxEntries && victim != "" {
		delete(m.entries, victim)
	}
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.entries {
		if matchGlob(pattern, k) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache) Health(context.Context) error {
	return nil
}

func (m *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"entries":     m.Len(),
		"max_entries": m.maxEntries,
	}
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}

// matchGlob implements the subset of Redis glob syntax used for keys: `*`,
// `?` and backslash escapes. Unlike path.Match, `*` also crosses `/`.
func matchGlob(pattern, s string) bool {
	p, str := []rune(pattern), []rune(s)
	pi, si := 0, 0
	starP, starS := -1, 0

	for si < len(str) {
		if pi < len(p) {
			switch p[pi] {
			case '*':
				starP, starS = pi, si
				pi++
				continue
			case '?':
				pi++
				si++
				continue
			case '\\':
				if pi+1 < len(p) && p[pi+1] == str[si] {
					pi += 2
					si++
					continue
				}
			default:
				if p[pi] == str[si] {
					pi++
					si++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starS++
		pi, si = starP+1, starS
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
