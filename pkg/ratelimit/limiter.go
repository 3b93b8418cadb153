package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"magistodl/pkg/config"
)

// Limiter paces page visits against the hosting service
type Limiter interface {
	// Allow reports whether a visit may happen now, consuming a slot if so
	Allow() bool
	// Wait blocks until a visit is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// New returns a limiter allowing perMinute visits in any sliding minute.
// A non-positive rate disables limiting.
func New(perMinute int) Limiter {
	if perMinute <= 0 {
		return Unlimited{}
	}
	return NewSlidingWindow(perMinute, time.Minute)
}

// FromConfig picks the limiter described by rc: none, a sliding window, or
// a token bucket when a burst is configured.
func FromConfig(rc config.RateLimitConfig) Limiter {
	if rc.PageVisitsPerMinute > 0 && rc.Burst > 0 {
		return NewTokenBucket(rc.PageVisitsPerMinute, rc.Burst)
	}
	return New(rc.PageVisitsPerMinute)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		wait := sw.untilNextSlot()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (sw *SlidingWindow) untilNextSlot() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(sw.requests) == 0 {
		return 10 * time.Millisecond
	}
	wait := sw.windowSize - sw.now().Sub(sw.requests[0])
	if wait <= 0 {
		return 10 * time.Millisecond
	}
	return wait
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// TokenBucket refills perMinute tokens per minute and holds at most burst
type TokenBucket struct {
	limiter   *rate.Limiter
	perMinute int
	burst     int
}

// NewTokenBucket creates a token bucket limiter
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	return &TokenBucket{
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Allow consumes a token if one is available
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.limiter = rate.NewLimiter(rate.Limit(float64(tb.perMinute)/60), tb.burst)
}
