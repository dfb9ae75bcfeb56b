package scanner

import (
	"sync"
	"time"
)

// ScannerCache keeps recently measured opportunities so back-to-back scans
// and manual trades do not refetch bars
type ScannerCache struct {
	mu    sync.RWMutex
	cache map[string]*cachedOpportunity
	ttl   time.Duration
	now   func() time.Time
}

// NewScannerCache creates a new cache with specified TTL; a zero TTL disables caching
func NewScannerCache(ttl time.Duration) *ScannerCache {
	return &ScannerCache{
		cache: make(map[string]*cachedOpportunity),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves an opportunity if not expired
func (sc *ScannerCache) Get(symbol string) (Opportunity, bool) {
	if sc.ttl <= 0 {
		return Opportunity{}, false
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	cached, exists := sc.cache[symbol]
	if !exists || sc.now().After(cached.ExpiresAt) {
		return Opportunity{}, false
	}
	return cached.Opportunity, true
}

// Set stores an opportunity with TTL
func (sc *ScannerCache) Set(opp Opportunity) {
	if sc.ttl <= 0 {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cache[opp.Symbol] = &cachedOpportunity{
		Opportunity: opp,
		ExpiresAt:   sc.now().Add(sc.ttl),
	}
}

// CleanupExpired removes expired cache entries
func (sc *ScannerCache) CleanupExpired() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := sc.now()
	for key, cached := range sc.cache {
		if now.After(cached.ExpiresAt) {
			delete(sc.cache, key)
		}
	}
}

// Len returns the number of cached entries
func (sc *ScannerCache) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}
