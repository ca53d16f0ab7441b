package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_Allow(t *testing.T) {
	bucket := NewTokenBucket(2, 1, time.Hour)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed)

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}

func TestTokenBucket_Refill(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(20 * time.Millisecond)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed, "bucket should refill after the interval")
}

func TestRateLimiter_SeparatesUsersAndActions(t *testing.T) {
	limiter := NewRateLimiter()

	// Drain user 1's send budget.
	for {
		allowed, _ := limiter.Allow(1, "send_message")
		if !allowed {
			break
		}
	}

	allowed, _ := limiter.Allow(2, "send_message")
	assert.True(t, allowed, "another user has their own bucket")

	allowed, _ = limiter.Allow(1, "mark_read")
	assert.True(t, allowed, "another action has its own bucket")
}
