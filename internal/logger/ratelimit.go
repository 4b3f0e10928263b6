package logger

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedRateLimiter holds one token-bucket limiter per log site key so a
// noisy error (e.g. repeated CRC mismatches) doesn't flood the log while an
// unrelated site logs normally.
type keyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRateLimiter() *keyedRateLimiter {
	return &keyedRateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a log line for key may be emitted now, admitting at
// most one per second with a small burst, per key.
func (k *keyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	lim, ok := k.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Second), 3)
		k.limiters[key] = lim
	}
	k.mu.Unlock()
	return lim.Allow()
}
