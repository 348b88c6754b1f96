package security

import (
	"sync"
	"time"
)

// RateLimiter allows at most limit events per client within a sliding window.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records one event for client and reports whether it is within the limit.
func (l *RateLimiter) Allow(client string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.hits[client], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.hits[client] = recent
		return false
	}
	l.hits[client] = append(recent, now)
	return true
}

// Lockout tracks failed password checks per client.
type Lockout struct {
	mu       sync.Mutex
	window   time.Duration
	failures map[string][]time.Time
	until    map[string]time.Time
	now      func() time.Time
}

// NewLockout counts failures inside window. Limits and lockout length are
// passed per call so that settings changes apply immediately.
func NewLockout(window time.Duration) *Lockout {
	return &Lockout{
		window:   window,
		failures: make(map[string][]time.Time),
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
}

// Locked reports whether client is locked out and until when.
func (l *Lockout) Locked(client string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.until[client]
	if !ok {
		return false, time.Time{}
	}
	if !l.now().Before(until) {
		delete(l.until, client)
		return false, time.Time{}
	}
	return true, until
}

// Fail records a failed attempt; reaching limit within the window locks the
// client for lockFor. It returns the remaining attempts before lockout.
func (l *Lockout) Fail(client string, limit int, lockFor time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := append(prune(l.failures[client], now.Add(-l.window)), now)
	if len(recent) >= limit {
		l.until[client] = now.Add(lockFor)
		delete(l.failures, client)
		return 0
	}
	l.failures[client] = recent
	return limit - len(recent)
}

// Reset clears the failure history after a successful check.
func (l *Lockout) Reset(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, client)
	delete(l.until, client)
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
