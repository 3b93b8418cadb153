package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"magistodl/pkg/config"
)

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow(), "limit reached")

	clock = clock.Add(30 * time.Second)
	assert.False(t, sw.Allow(), "window has not slid yet")

	clock = clock.Add(31 * time.Second)
	assert.True(t, sw.Allow(), "window slid past the first requests")

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestSlidingWindowWaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	assert.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, sw.Wait(ctx), context.DeadlineExceeded)
}

func TestSlidingWindowWaitReturnsWhenFree(t *testing.T) {
	sw := NewSlidingWindow(2, time.Minute)
	assert.NoError(t, sw.Wait(context.Background()))
	assert.NoError(t, sw.Wait(context.Background()))
}

func TestNew(t *testing.T) {
	assert.IsType(t, Unlimited{}, New(0))
	assert.IsType(t, &SlidingWindow{}, New(30))

	u := New(-1)
	for i := 0; i < 100; i++ {
		assert.True(t, u.Allow())
	}
}

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "burst request %d", i+1)
	}
	assert.False(t, tb.Allow(), "bucket drained")

	tb.Reset()
	assert.True(t, tb.Allow(), "reset refills the bucket")
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	assert.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, tb.Wait(ctx))
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name string
		rc   config.RateLimitConfig
		want Limiter
	}{
		{"disabled", config.RateLimitConfig{}, Unlimited{}},
		{"disabled ignores burst", config.RateLimitConfig{Burst: 5}, Unlimited{}},
		{"sliding window", config.RateLimitConfig{PageVisitsPerMinute: 30}, &SlidingWindow{}},
		{"token bucket", config.RateLimitConfig{PageVisitsPerMinute: 30, Burst: 5}, &TokenBucket{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.IsType(t, tt.want, FromConfig(tt.rc))
		})
	}
}
