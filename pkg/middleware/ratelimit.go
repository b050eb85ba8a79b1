package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns limits for anonymous callers
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// PerUserRateLimitConfig returns limits for authenticated users
func PerUserRateLimitConfig(requestsPerMinute int) *RateLimitConfig {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	return &RateLimitConfig{
		RequestsPerWindow: requestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         requestsPerMinute / 10,
	}
}

// RateLimiter implements rate limiting using a token bucket per key
type RateLimiter struct {
	config  *RateLimitConfig
	clock   clockwork.Clock
	buckets map[string]*bucket
	mu      sync.Mutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig, clock clockwork.Clock) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		config:  config,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.clock.Now()

	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastUpdate)
	refill := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if refill > 0 {
		b.tokens += refill
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	rl.mu.Unlock()

	if !exists {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware provides HTTP rate limiting
type RateLimitMiddleware struct {
	userLimiter      *RateLimiter
	anonymousLimiter *RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(requestsPerMinute int, clock clockwork.Clock) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		userLimiter:      NewRateLimiter(PerUserRateLimitConfig(requestsPerMinute), clock),
		anonymousLimiter: NewRateLimiter(DefaultRateLimitConfig(), clock),
	}
}

// StartCleanup prunes idle buckets from both limiters until ctx is done.
func (m *RateLimitMiddleware) StartCleanup(ctx context.Context) {
	m.userLimiter.StartCleanup(ctx)
	m.anonymousLimiter.StartCleanup(ctx)
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, limiter := rateLimitKey(r), m.anonymousLimiter
		if CurrentUser(r) != nil {
			limiter = m.userLimiter
		}

		if !limiter.Allow(key) {
			rateLimitExceeded(w, limiter.config, limiter.config.WindowDuration)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining(key)))
		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if user := CurrentUser(r); user != nil {
		return fmt.Sprintf("user:%d", user.ID)
	}
	return "ip:" + getClientIP(r)
}

func rateLimitExceeded(w http.ResponseWriter, config *RateLimitConfig, retryAfter time.Duration) {
	secs := fmt.Sprintf("%.0f", retryAfter.Seconds())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", secs)
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded","retry_after":` + secs + `}`))
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
