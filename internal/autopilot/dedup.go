package autopilot

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long an alert key stays suppressed
const DefaultDedupWindow = 30 * time.Minute

// DedupCache suppresses repeat notifications for a key inside a sliding window
type DedupCache struct {
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
	seen   map[string]time.Time
}

// NewDedupCache creates a cache; window <= 0 uses DefaultDedupWindow
func NewDedupCache(window time.Duration) *DedupCache {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupCache{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// ShouldNotify reports whether key is outside the window and, if so, marks it sent
func (d *DedupCache) ShouldNotify(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pruneLocked(now)
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

// Len returns the number of keys currently suppressed
func (d *DedupCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked(d.now())
	return len(d.seen)
}

// Forget drops one key so its next notification is sent
func (d *DedupCache) Forget(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}

// Reset forgets every key
func (d *DedupCache) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]time.Time)
	d.mu.Unlock()
}

func (d *DedupCache) pruneLocked(now time.Time) {
	for k, t := range d.seen {
		if now.Sub(t) >= d.window {
			delete(d.seen, k)
		}
	}
}
