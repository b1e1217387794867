package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache stores opaque values under content signatures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

type entry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache is a bounded TTL cache; the oldest entry is evicted when full.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(config Config) *MemoryCache {
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 256
	}
	return &MemoryCache{
		entries:    make(map[string]entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	item, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	now := c.now()
	if now.After(item.expiresAt) {
		c.mu.Lock()
		// A concurrent Set may have refreshed the key since the read.
		if current, ok := c.entries[key]; ok && now.After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	now := c.now()
	item := entry{
		value:     append([]byte(nil), value...),
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = item
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		value entry
	}
	pairs := make([]pair, 0, len(c.entries))
	for key, value := range c.entries {
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.createdAt.Before(pairs[j].value.createdAt)
	})
	delete(c.entries, pairs[0].key)
}

// Signature hashes parts into a stable hex key. Parts are trimmed but keep
// their case.
func Signature(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.TrimSpace(part))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "||")))
	return hex.EncodeToString(sum[:])
}
