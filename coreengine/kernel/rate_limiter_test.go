package kernel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// RATE LIMITER TESTS
// =============================================================================

func TestRateLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(2, time.Minute, WithRateLimitClock(clock.Now))

	first := rl.Allow("user-1")
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Current)
	assert.Equal(t, 1, first.Remaining)

	second := rl.Allow("user-1")
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third := rl.Allow("user-1")
	assert.False(t, third.Allowed)
	assert.Equal(t, 2, third.Current)
	assert.Equal(t, 2, third.Limit)
	assert.Greater(t, third.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, third.RetryAfter, time.Minute)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1, time.Minute, WithRateLimitClock(clock.Now))

	require.True(t, rl.Allow("user-1").Allowed)
	clock.Advance(30 * time.Second)
	assert.False(t, rl.Allow("user-1").Allowed)

	clock.Advance(31 * time.Second)
	assert.True(t, rl.Allow("user-1").Allowed)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1, time.Minute, WithRateLimitClock(clock.Now))

	assert.True(t, rl.Allow("user-1").Allowed)
	assert.True(t, rl.Allow("user-2").Allowed)
	assert.False(t, rl.Allow("user-1").Allowed)
}

func TestRateLimiter_ZeroLimitAdmitsEverything(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)

	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("user-1").Allowed)
	}
	assert.Equal(t, 0, rl.Limit())
}

func TestRateLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1, time.Minute, WithRateLimitClock(clock.Now))

	require.True(t, rl.Allow("user-1").Allowed)
	require.False(t, rl.Allow("user-1").Allowed)

	rl.Reset("user-1")

	assert.True(t, rl.Allow("user-1").Allowed)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(5, time.Minute, WithRateLimitClock(clock.Now))
	rl.Allow("user-1")
	rl.Allow("user-2")

	assert.Equal(t, 0, rl.Cleanup())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(50, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
