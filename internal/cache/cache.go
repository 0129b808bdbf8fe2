package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the persistent layer behind the artwork cache.
type Store interface {
	GetArtwork(ctx context.Context, trackID string, maxAge time.Duration) (string, bool, error)
	PutArtwork(ctx context.Context, trackID, url string) error
}

// ArtworkCache remembers the best thumbnail resolved for a track so repeated
// plays don't probe image hosts again. Lookups hit memory first and fall back
// to the store.
type ArtworkCache struct {
	store Store
	ttl   time.Duration
	limit int

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	url string
	at  time.Time
}

func NewArtworkCache(store Store, ttl time.Duration, limit int) *ArtworkCache {
	return &ArtworkCache{store: store, ttl: ttl, limit: limit, entries: make(map[string]entry)}
}

func (c *ArtworkCache) Get(ctx context.Context, trackID string) (string, bool) {
	c.mu.Lock()
	e, ok := c.entries[trackID]
	if ok && c.ttl > 0 && time.Since(e.at) > c.ttl {
		delete(c.entries, trackID)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		return e.url, true
	}

	if c.store == nil {
		return "", false
	}
	url, ok, err := c.store.GetArtwork(ctx, trackID, c.ttl)
	if err != nil {
		slog.Warn("artwork cache lookup failed", "track", trackID, "err", err)
		return "", false
	}
	if ok {
		c.remember(trackID, url)
	}
	return url, ok
}

func (c *ArtworkCache) Put(ctx context.Context, trackID, url string) {
	c.remember(trackID, url)
	if c.store == nil {
		return
	}
	if err := c.store.PutArtwork(ctx, trackID, url); err != nil {
		slog.Warn("artwork cache write failed", "track", trackID, "err", err)
	}
}

func (c *ArtworkCache) remember(trackID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[trackID] = entry{url: url, at: time.Now()}
	c.evictLocked()
}

// evictLocked drops the oldest entries until the cache fits its limit.
func (c *ArtworkCache) evictLocked() {
	for c.limit > 0 && len(c.entries) > c.limit {
		var oldest string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldest == "" || e.at.Before(oldestAt) {
				oldest, oldestAt = k, e.at
			}
		}
		delete(c.entries, oldest)
	}
}

func (c *ArtworkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
