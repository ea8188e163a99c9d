// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ratelimit provides an in-process fixed-window request counter keyed
// by an opaque identifier.
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Policy is a named request budget.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// Preconfigured policies.
var (
	// PolicyAuth protects login attempts.
	PolicyAuth = Policy{Name: "auth", MaxRequests: 5, Window: 15 * time.Minute}
	// PolicyAPI is the general budget for public endpoints.
	PolicyAPI = Policy{Name: "api", MaxRequests: 100, Window: time.Minute}
	// PolicyUpload protects upload endpoints.
	PolicyUpload = Policy{Name: "upload", MaxRequests: 10, Window: time.Minute}
	// PolicyAdmin protects admin and editor mutation actions.
	PolicyAdmin = Policy{Name: "admin", MaxRequests: 30, Window: time.Minute}
)

// Policies maps policy names to their definitions.
var Policies = map[string]Policy{
	PolicyAuth.Name:   PolicyAuth,
	PolicyAPI.Name:    PolicyAPI,
	PolicyUpload.Name: PolicyUpload,
	PolicyAdmin.Name:  PolicyAdmin,
}

// Clock returns the current time.
type Clock func() time.Time

// Result is the outcome of one CheckAndConsume call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// Denials counts rejected calls in the current window, this one
	// included. It is zero when the call was allowed.
	Denials int
}

// RetryAfter returns how long the caller should wait before retrying.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// entry is one window's counter.
type entry struct {
	count   int
	denied  int
	resetAt time.Time
}

// Limiter is a fixed-window counter table. Bursts at window boundaries are
// accepted in exchange for O(1) state per key.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     Clock
}

// New creates a Limiter. A nil clock uses time.Now.
func New(clock Clock) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{
		entries: make(map[string]*entry),
		now:     clock,
	}
}

// CheckAndConsume counts one request against identifier and reports whether
// it fits in the current window. Once the budget is spent further calls are
// rejected and only counted as denials.
func (l *Limiter) CheckAndConsume(identifier string, maxRequests int, window time.Duration) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		l.entries[identifier] = e
		if maxRequests < 1 {
			e.denied = 1
			return Result{Allowed: false, ResetAt: e.resetAt, Denials: 1}
		}
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetAt: e.resetAt}
	}

	if e.count >= maxRequests {
		e.denied++
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt, Denials: e.denied}
	}

	e.count++
	return Result{Allowed: true, Remaining: maxRequests - e.count, ResetAt: e.resetAt}
}

// Check applies a named policy to identifier.
func (l *Limiter) Check(p Policy, identifier string) Result {
	return l.CheckAndConsume(identifier, p.MaxRequests, p.Window)
}

// Reset forgets the counter for identifier.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	delete(l.entries, identifier)
	l.mu.Unlock()
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops entries whose window has ended and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	l.mu.Unlock()

	if removed > 0 {
		slog.Debug("rate limit entries swept", "removed", removed)
	}
	return removed
}

// UserKey builds the identifier for an authenticated user's action,
// e.g. "admin:42:pending_change".
func UserKey(p Policy, userID int64, action string) string {
	return fmt.Sprintf("%s:%d:%s", p.Name, userID, action)
}

// IPKey builds the identifier for an anonymous client's action,
// e.g. "ip:203.0.113.9:login".
func IPKey(ip, action string) string {
	return "ip:" + ip + ":" + action
}
