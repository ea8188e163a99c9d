// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// maxFloodGuardEntries bounds the per-IP limiter table.
const maxFloodGuardEntries = 10000

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// newLimiterCache creates a new limiter cache.
func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
// Returns the number of entries dropped.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	n := len(lc.limiters)
	if n > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return n
	}
	return 0
}

// FloodGuard is a coarse per-IP token bucket in front of the API. The
// per-action budgets live in the workflow; this only sheds request floods
// before they reach it.
type FloodGuard struct {
	cache *limiterCache[string]
}

// NewFloodGuard creates a guard allowing rps requests per second per IP with
// the given burst.
func NewFloodGuard(rps float64, burst int) *FloodGuard {
	return &FloodGuard{cache: newLimiterCache[string](rps, burst)}
}

// Middleware returns the guard as JSON-speaking middleware.
func (g *FloodGuard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)
			if !g.cache.get(ip).Allow() {
				slog.Warn("request flood rejected", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sweep drops all tracked addresses once the table grows past its bound and
// returns how many were dropped.
func (g *FloodGuard) Sweep() int {
	return g.cache.clearIfExceeds(maxFloodGuardEntries)
}
