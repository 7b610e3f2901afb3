package notify

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedup suppresses duplicate lifecycle notifications within a TTL window,
// e.g. when a supervisor retries a close that already published.
type Dedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Dedup{cache: c, ttl: ttl}
}

// Seen reports whether key was observed within the TTL window and records
// the observation either way.
func (d *Dedup) Seen(key string) bool {
	if addedAt, ok := d.cache.Get(key); ok {
		if time.Since(addedAt) < d.ttl {
			return true
		}
	}
	d.cache.Add(key, time.Now())
	return false
}
