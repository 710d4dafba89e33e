package gateway

import (
	"sync"
	"time"
)

const (
	defaultRequestsPerMinute = 60
	defaultMaxConcurrent     = 10

	reasonConcurrent = "too many concurrent requests"
	reasonRate       = "rate limit exceeded"
)

// ClientRateLimiter applies a sliding one-minute window and a concurrency cap
// to the RPC requests of one client.
type ClientRateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	requests          []time.Time
	concurrent        int
	now               func() time.Time
}

// NewClientRateLimiter creates a rate limiter. Non-positive limits fall back
// to 60 requests per minute and 10 concurrent requests.
func NewClientRateLimiter(requestsPerMinute, maxConcurrent int) *ClientRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &ClientRateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		now:               time.Now,
	}
}

// Acquire reserves a request slot. It returns false and the reason when the
// request must be rejected; otherwise Release must be called when it ends.
func (r *ClientRateLimiter) Acquire() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrent >= r.maxConcurrent {
		return false, reasonConcurrent
	}
	r.pruneLocked()
	if len(r.requests) >= r.requestsPerMinute {
		return false, reasonRate
	}

	r.requests = append(r.requests, r.now())
	r.concurrent++
	return true, ""
}

// Release frees a slot taken by Acquire.
func (r *ClientRateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrent > 0 {
		r.concurrent--
	}
}

// Stats returns the requests in the current window and those in flight.
func (r *ClientRateLimiter) Stats() (requests, concurrent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	return len(r.requests), r.concurrent
}

func (r *ClientRateLimiter) pruneLocked() {
	cutoff := r.now().Add(-time.Minute)
	i := 0
	for i < len(r.requests) && !r.requests[i].After(cutoff) {
		i++
	}
	r.requests = r.requests[i:]
}
