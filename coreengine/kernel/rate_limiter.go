package kernel

import (
	"sync"
	"time"
)

// =============================================================================
// Rate Limit Result
// =============================================================================

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed   bool
	Current   int // Requests counted in the window, including this one when allowed
	Limit     int
	Remaining int
	// RetryAfter is how long until a slot frees up. Zero when allowed.
	RetryAfter time.Duration
}

// =============================================================================
// Sliding Window
// =============================================================================

const windowBuckets = 10

// slidingWindow counts requests in windowBuckets sub-buckets so the window
// slides in steps of window/windowBuckets.
type slidingWindow struct {
	bucketSize time.Duration
	buckets    map[int64]int
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	size := window / windowBuckets
	if size <= 0 {
		size = 1
	}
	return &slidingWindow{bucketSize: size, buckets: make(map[int64]int)}
}

func (w *slidingWindow) bucketOf(t time.Time) int64 {
	return t.UnixNano() / int64(w.bucketSize)
}

// prune drops buckets that slid out of the window ending at now.
func (w *slidingWindow) prune(now time.Time) {
	oldest := w.bucketOf(now) - windowBuckets + 1
	for b := range w.buckets {
		if b < oldest {
			delete(w.buckets, b)
		}
	}
}

func (w *slidingWindow) count() int {
	total := 0
	for _, c := range w.buckets {
		total += c
	}
	return total
}

// retryAfter is the time until the oldest live bucket leaves the window.
func (w *slidingWindow) retryAfter(now time.Time) time.Duration {
	first := int64(-1)
	for b := range w.buckets {
		if first == -1 || b < first {
			first = b
		}
	}
	if first == -1 {
		return 0
	}
	expires := time.Unix(0, (first+windowBuckets)*int64(w.bucketSize))
	if d := expires.Sub(now); d > 0 {
		return d
	}
	return 0
}

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter admits at most limit requests per key within a sliding window.
// A limit of 0 admits everything. Safe for concurrent use.
type RateLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*slidingWindow
	mu      sync.Mutex
}

// RateLimitOption configures a RateLimiter.
type RateLimitOption func(*RateLimiter)

// WithRateLimitClock overrides the clock.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(r *RateLimiter) { r.now = now }
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration, opts ...RateLimitOption) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	r := &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*slidingWindow),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limit returns the configured limit per window.
func (r *RateLimiter) Limit() int { return r.limit }

// Allow checks key against the limit and records the request when admitted.
func (r *RateLimiter) Allow(key string) RateLimitResult {
	if r.limit <= 0 {
		return RateLimitResult{Allowed: true}
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok {
		w = newSlidingWindow(r.window)
		r.windows[key] = w
	}
	w.prune(now)

	current := w.count()
	if current >= r.limit {
		return RateLimitResult{
			Allowed:    false,
			Current:    current,
			Limit:      r.limit,
			RetryAfter: w.retryAfter(now),
		}
	}

	w.buckets[w.bucketOf(now)]++
	return RateLimitResult{
		Allowed:   true,
		Current:   current + 1,
		Limit:     r.limit,
		Remaining: r.limit - current - 1,
	}
}

// Reset forgets all requests recorded for key.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, key)
}

// Cleanup drops windows with no live requests and returns how many it removed.
func (r *RateLimiter) Cleanup() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, w := range r.windows {
		w.prune(now)
		if len(w.buckets) == 0 {
			delete(r.windows, key)
			removed++
		}
	}
	return removed
}
