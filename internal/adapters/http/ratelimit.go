package httpadapter

import (
	"sync"

	"golang.org/x/time/rate"
)

// keyLimiters hands out one token bucket per API key. Buckets live for the
// process lifetime; the key space is small enough that eviction isn't worth
// the bookkeeping.
type keyLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newKeyLimiters(limit float64, burst int) *keyLimiters {
	return &keyLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(limit),
		burst:    burst,
	}
}

func (k *keyLimiters) get(keyID string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[keyID]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[keyID] = l
	}
	return l
}

func (k *keyLimiters) allow(keyID string) bool {
	return k.get(keyID).Allow()
}
