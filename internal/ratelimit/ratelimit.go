// Package ratelimit implements token-bucket admission control for outbound
// ClickUp API calls. The upstream limit is 1000 requests/minute per token;
// every request goes through a shared Limiter so concurrent workers cannot
// collectively exceed it.
package ratelimit

import (
	"sync"
	"time"
)

const maxBurst = 150

// Stats is a snapshot of limiter activity, used in fetch summaries.
type Stats struct {
	TotalRequests int
	TotalWaits    int
	TotalWaitTime time.Duration
}

// Limiter is a thread-safe token bucket. Acquire never fails, it only delays.
type Limiter struct {
	mu     sync.Mutex
	rps    float64
	burst  float64
	tokens float64
	last   time.Time

	totalRequests int
	totalWaits    int
	totalWaitTime time.Duration

	// sleep is swappable so tests can run without real delays.
	sleep func(time.Duration)
}

// New returns a Limiter sized for the given per-minute budget. Burst capacity
// is 15% of the budget, capped at 150 tokens (matches the upstream burst
// allowance). A non-positive budget falls back to 1000 req/min.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1000
	}
	burst := float64(requestsPerMinute) * 0.15
	if burst > maxBurst {
		burst = maxBurst
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rps:    float64(requestsPerMinute) / 60.0,
		burst:  burst,
		tokens: burst,
		last:   time.Now(),
		sleep:  time.Sleep,
	}
}

// Acquire takes one token, sleeping until the bucket can cover it. The sleep
// happens outside the lock so waiting callers do not serialize refills.
func (l *Limiter) Acquire() time.Duration {
	l.mu.Lock()
	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rps
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
	l.totalRequests++

	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return 0
	}

	// Let the balance go negative: each waiter books its own token against a
	// future refill, so concurrent waiters queue behind one another instead of
	// all claiming the same deficit.
	deficit := 1 - l.tokens
	wait := time.Duration(deficit / l.rps * float64(time.Second))
	l.tokens--
	l.totalWaits++
	l.totalWaitTime += wait
	l.mu.Unlock()

	if wait > 0 {
		l.sleep(wait)
	}
	return wait
}

// Stats returns cumulative wait counters for observability.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		TotalRequests: l.totalRequests,
		TotalWaits:    l.totalWaits,
		TotalWaitTime: l.totalWaitTime,
	}
}
