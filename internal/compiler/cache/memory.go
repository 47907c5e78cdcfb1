package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is one cached build output
type memoryEntry struct {
	value     []byte
	cachedAt  time.Time
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache keeps build outputs in process, for watch-style repeated builds and tests
type MemoryCache struct {
	entries map[string]*memoryEntry
	config  Config
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCache creates an in-memory cache
func NewMemoryCache(config Config) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get retrieves a cached output. Expired entries are reported as misses and left
// for Prune.
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	entry, exists := mc.entries[mc.config.Prefix+key]
	if !exists || entry.expired(mc.now()) {
		return nil, ErrCacheMiss{Key: key}
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores an output
func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = mc.config.DefaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	entry := &memoryEntry{
		value:    append([]byte(nil), value...),
		cachedAt: now,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	mc.entries[mc.config.Prefix+key] = entry
	return nil
}

// Delete removes an entry from the cache
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.entries, mc.config.Prefix+key)
	return nil
}

// Clear empties the cache
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*memoryEntry)
	return nil
}

// Size returns the number of cached entries, expired ones included
func (mc *MemoryCache) Size() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return len(mc.entries)
}

// Prune removes expired entries and returns how many were removed
func (mc *MemoryCache) Prune() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	pruned := 0
	for key, entry := range mc.entries {
		if entry.expired(now) {
			delete(mc.entries, key)
			pruned++
		}
	}
	return pruned
}
