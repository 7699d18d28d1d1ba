package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter caps control requests per client and window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int

	clients map[string]*clientUsage
	now     func() time.Time
}

// clientUsage tracks the current windows of one client.
type clientUsage struct {
	minuteStart time.Time
	hourStart   time.Time
	lastMinute  int
	lastHour    int
}

// NewRateLimiter creates a limiter. A zero limit disables that window.
func NewRateLimiter(requestsPerMinute, requestsPerHour int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// Allow records a request from clientID or returns a *RateLimitError.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{minuteStart: now, hourStart: now}
		rl.clients[clientID] = usage
	}
	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.minuteStart, usage.lastMinute = now, 0
	}
	if now.Sub(usage.hourStart) >= time.Hour {
		usage.hourStart, usage.lastHour = now, 0
	}

	if rl.requestsPerMinute > 0 && usage.lastMinute >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: time.Minute - now.Sub(usage.minuteStart)}
	}
	if rl.requestsPerHour > 0 && usage.lastHour >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: time.Hour - now.Sub(usage.hourStart)}
	}

	usage.lastMinute++
	usage.lastHour++
	return nil
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}
