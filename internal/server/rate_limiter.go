package server

import (
	"sync"
	"time"
)

// opRateLimiter enforces a fixed window of at most maxCalls per key. Upload
// and download handlers key it by (username, operation).
type opRateLimiter struct {
	mu            sync.Mutex
	entries       map[string]opRateLimitEntry
	maxCalls      int
	window        time.Duration
	staleAfter    time.Duration
	opCount       int
	cleanupEveryN int
}

type opRateLimitEntry struct {
	calls       int
	windowStart time.Time
	lastSeenAt  time.Time
}

func newOpRateLimiter(maxCalls int, window time.Duration) *opRateLimiter {
	if maxCalls <= 0 || window <= 0 {
		return nil
	}
	staleAfter := window * 10
	if staleAfter < 10*time.Minute {
		staleAfter = 10 * time.Minute
	}
	return &opRateLimiter{
		entries:       make(map[string]opRateLimitEntry),
		maxCalls:      maxCalls,
		window:        window,
		staleAfter:    staleAfter,
		cleanupEveryN: 64,
	}
}

// Allow records one call for key and reports whether it fits the window.
func (l *opRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[key]
	if entry.windowStart.IsZero() || now.Sub(entry.windowStart) >= l.window {
		entry.calls = 0
		entry.windowStart = now
	}

	allowed := entry.calls < l.maxCalls
	if allowed {
		entry.calls++
	}
	entry.lastSeenAt = now
	l.entries[key] = entry
	l.maybeCleanupLocked(now)

	return allowed
}

func (l *opRateLimiter) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.cleanupEveryN <= 0 {
		l.cleanupEveryN = 64
	}
	if l.opCount%l.cleanupEveryN != 0 {
		return
	}
	for key, entry := range l.entries {
		if entry.lastSeenAt.IsZero() || now.Sub(entry.lastSeenAt) > l.staleAfter {
			delete(l.entries, key)
		}
	}
}
