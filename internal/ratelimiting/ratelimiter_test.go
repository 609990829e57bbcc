package ratelimiting

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyBasedRateLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
	rateLimiter, stop := NewKeyBasedRateLimiter(1, 2)
	t.Cleanup(stop)

	assert.True(t, rateLimiter.Consume("bank/accounts"))

	// Burst of 2
	assert.True(t, rateLimiter.Consume("info"))
	assert.True(t, rateLimiter.Consume("info"))
	assert.False(t, rateLimiter.Consume("info"))

	time.Sleep(1000 * time.Millisecond)
	runtime.Gosched()

	// Refill rate of 1
	assert.True(t, rateLimiter.Consume("info"))
	assert.False(t, rateLimiter.Consume("info"))

	// Burst of 2 - even after refill
	assert.True(t, rateLimiter.Consume("util/uuid"))
	assert.True(t, rateLimiter.Consume("util/uuid"))
	assert.False(t, rateLimiter.Consume("util/uuid"))

	assert.True(t, rateLimiter.Consume("bank/accounts"))
	assert.False(t, rateLimiter.Consume("bank/accounts"))
}

func TestKeyBasedRateLimiterStop(t *testing.T) {
	before := runtime.NumGoroutine()

	stops := make([]func(), 0, 20)
	for i := 0; i < 20; i++ {
		rateLimiter, stop := NewKeyBasedRateLimiter(1, 2)
		assert.True(t, rateLimiter.Consume("info"))
		stops = append(stops, stop)
	}

	for _, stop := range stops {
		stop()
	}

	// Every eviction goroutine exits once its limiter is stopped
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 5*time.Second, 10*time.Millisecond)
}
