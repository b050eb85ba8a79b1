package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
)

func TestRateLimiterRefill(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute, BurstSize: 2}, clock)

	for i := 0; i < 62; i++ {
		require.True(t, rl.Allow("k"), "request %d", i)
	}
	assert.False(t, rl.Allow("k"))
	assert.Equal(t, 0, rl.Remaining("k"))
	assert.Equal(t, 62, rl.Remaining("other"))

	clock.Advance(2 * time.Second)
	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	clock.Advance(3 * time.Minute)
	rl.Cleanup()
	assert.Equal(t, 62, rl.Remaining("k"))
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func TestRateLimiterStartCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	m := NewRateLimitMiddleware(10, clock)
	m.userLimiter.Allow("user:1")
	m.anonymousLimiter.Allow("ip:10.0.0.1")

	m.StartCleanup(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	clock.Advance(3 * time.Minute)
	assert.Eventually(t, func() bool {
		return m.userLimiter.size() == 0 && m.anonymousLimiter.size() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimitMiddlewareKeysByUser(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewRateLimitMiddleware(10, clock)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(u *auth.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if u != nil {
			req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{User: u}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	alice := &auth.User{ID: 1}
	// 10 per minute plus a burst of 1.
	for i := 0; i < 11; i++ {
		require.Equal(t, http.StatusOK, call(alice).Code)
	}
	rec := call(alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call(&auth.User{ID: 2}).Code)
	rec = call(nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "")
	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "user:1")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := rl.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.True(t, mr.TTL("folio:ratelimit:user:1") > 0)

	mr.FastForward(time.Minute + time.Second)
	remaining, err = rl.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	require.NoError(t, rl.Reset(ctx, "user:1"))
}

func TestDistributedRateLimitMiddlewareFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	m := NewDistributedRateLimitMiddleware(client, 1, nil)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{User: &auth.User{ID: 7}}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())

	mr.Close()
	assert.Equal(t, http.StatusOK, call())
}
