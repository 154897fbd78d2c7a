package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryCache keeps values in process. It is used when Redis is disabled,
// so entries are only coherent within a single instance.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	metrics *CacheMetrics
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:   make(map[string]memoryItem),
		metrics: NewCacheMetrics(),
		now:     time.Now,
	}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()

	m.metrics.RecordSet()
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || item.expired(m.now()) {
		if ok {
			m.mu.Lock()
			delete(m.items, key)
			m.mu.Unlock()
		}
		m.metrics.RecordMiss()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(item.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	m.metrics.RecordHit()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.items, key)
	}
	m.mu.Unlock()

	m.metrics.RecordDelete()
	return nil
}

// DeletePattern uses glob syntax, close to Redis MATCH for the patterns we use.
func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	return ok && !item.expired(m.now()), nil
}

func (m *MemoryCache) Stats() map[string]interface{} {
	m.mu.RLock()
	size := len(m.items)
	m.mu.RUnlock()

	stats := m.metrics.GetStats()
	return map[string]interface{}{
		"backend":  "memory",
		"size":     size,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"deletes":  stats.Deletes,
		"hit_rate": m.metrics.HitRate(),
	}
}

func (m *MemoryCache) Health() error {
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.items = make(map[string]memoryItem)
	m.mu.Unlock()
	return nil
}
