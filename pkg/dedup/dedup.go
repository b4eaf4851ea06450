// Package dedup remembers keys for a TTL; a key seen again before it
// expires is reported as a duplicate.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// ShouldProcess is ShouldProcessAt with the wall clock.
func (d *Deduper) ShouldProcess(id string) bool {
	return d.ShouldProcessAt(id, time.Now())
}

// ShouldProcessAt reports whether id is new (or expired) at now and, if so,
// remembers it until now+ttl. Empty ids always pass.
func (d *Deduper) ShouldProcessAt(id string, now time.Time) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evictLocked(now)
	}
	return true
}

// evictLocked drops expired keys; if none expired it drops arbitrary keys
// until the map is back under max.
func (d *Deduper) evictLocked(now time.Time) {
	for k, v := range d.seen {
		if !now.Before(v) {
			delete(d.seen, k)
		}
	}
	for k := range d.seen {
		if len(d.seen) <= d.max {
			break
		}
		delete(d.seen, k)
	}
}

// Len returns the number of remembered keys.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
