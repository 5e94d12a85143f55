package feed

import (
	"context"
	"slices"
	"sync"
	"time"

	"calwatch/internal/models"
)

type cacheEntry struct {
	bucket string
	events []models.Event
}

// Cache keeps the last successful fetch of each feed URL for one time bucket.
// A lookup in a newer bucket refetches and replaces the entry. Failed
// fetches are never cached.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the events cached for (url, bucket), or calls fetch and
// caches its result. An empty bucket disables caching. The second return
// value reports a cache hit.
func (c *Cache) Get(ctx context.Context, url, bucket string, fetch func(context.Context) ([]models.Event, error)) ([]models.Event, bool, error) {
	if bucket != "" {
		c.mu.Lock()
		entry, ok := c.entries[url]
		c.mu.Unlock()
		if ok && entry.bucket == bucket {
			return slices.Clone(entry.events), true, nil
		}
	}

	events, err := fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	if bucket != "" {
		c.mu.Lock()
		c.entries[url] = cacheEntry{bucket: bucket, events: slices.Clone(events)}
		c.mu.Unlock()
	}
	return events, false, nil
}

// BucketKey names the window of width window that t falls in. It returns ""
// when window is not positive.
func BucketKey(t time.Time, window time.Duration) string {
	if window <= 0 {
		return ""
	}
	return t.UTC().Truncate(window).Format(time.RFC3339)
}
