package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"mercator-hq/ganymede/pkg/providers"
)

// cacheKey produces a stable hash over the request fields that determine
// the response: model, messages, temperature, and max_tokens. Sampling
// noise fields are deliberately excluded so near-identical requests share
// entries.
func cacheKey(req *providers.CompletionRequest) string {
	payload := struct {
		Model       string              `json:"model"`
		Messages    []providers.Message `json:"messages"`
		Temperature float64             `json:"temperature"`
		MaxTokens   int                 `json:"max_tokens"`
	}{req.Model, req.Messages, req.Temperature, req.MaxTokens}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	chunks    []*providers.StreamChunk
	createdAt time.Time
	expiresAt time.Time
}

// responseCache holds fully materialized chunk sequences keyed by request
// hash. Streams are only cached after complete consumption, so a hit
// replays a byte-identical sequence as a fresh buffered stream.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
}

func newResponseCache(ttl time.Duration, maxSize int) *responseCache {
	return &responseCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// get returns the cached chunk sequence for key, or nil on miss/expiry.
func (c *responseCache) get(key string, now time.Time) []*providers.StreamChunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return entry.chunks
}

// put stores a fully materialized chunk sequence. When full, the oldest
// entry is evicted.
func (c *responseCache) put(key string, chunks []*providers.StreamChunk, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = &cacheEntry{
		chunks:    chunks,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// evictOldestLocked removes the entry with the earliest creation time.
// Caller holds the lock.
func (c *responseCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// clear drops all entries.
func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// setTTL updates the TTL for future entries.
func (c *responseCache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// len returns the current entry count.
func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
