// Package ratelimit implements an in-memory token-bucket rate limiter
// keyed by caller identity.
package ratelimit

import (
	"sync"
	"time"
)

// entry tracks the token-bucket state for a single caller.
type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter grants each caller `limit` tokens per window, refilled
// continuously at limit/window per second.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
}

// New creates a limiter with the given per-caller budget and refill window.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
	}
	go l.cleanup()
	return l
}

// Window returns the refill window the limiter was created with.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow consumes one token for the given caller and returns true, or
// returns false when the caller's budget is exhausted.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, exists := l.entries[key]
	if !exists {
		l.entries[key] = &entry{
			tokens:    float64(l.limit - 1),
			lastCheck: now,
		}
		return true
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now

	rate := float64(l.limit) / l.window.Seconds()
	e.tokens += elapsed.Seconds() * rate
	if e.tokens > float64(l.limit) {
		e.tokens = float64(l.limit)
	}

	if e.tokens < 1 {
		return false
	}

	e.tokens--
	return true
}

// Reset clears the state for a specific caller.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// cleanup periodically drops callers that have gone quiet so the entry map
// does not grow without bound.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-2 * l.window)
		for key, e := range l.entries {
			if e.lastCheck.Before(cutoff) {
				delete(l.entries, key)
			}
		}
		l.mu.Unlock()
	}
}
