package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/session-vault/testutil"
)

func TestRateLimiter_Allow(t *testing.T) {
	clock := testutil.NewClock(t0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 2, Clock: clock.Now})

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)

	ok, wait := rl.Allow("a")
	assert.False(t, ok, "burst exhausted")
	assert.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "clients have separate buckets")

	clock.Advance(time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok, "bucket refills")
}

func TestRateLimiter_RejectedRequestsDoNotConsume(t *testing.T) {
	clock := testutil.NewClock(t0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, Clock: clock.Now})

	ok, _ := rl.Allow("a")
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		ok, _ = rl.Allow("a")
		require.False(t, ok)
	}
	clock.Advance(time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := testutil.NewClock(t0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, Clock: clock.Now})
	rl.Allow("old")

	clock.Advance(idleClientTTL + time.Minute)
	rl.Allow("new")
	rl.mu.Lock()
	rl.sweep(clock.Now())
	_, hasOld := rl.clients["old"]
	_, hasNew := rl.clients["new"]
	rl.mu.Unlock()

	assert.False(t, hasOld)
	assert.True(t, hasNew)
}

func TestRateLimiter_CapsActiveClients(t *testing.T) {
	clock := testutil.NewClock(t0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, Clock: clock.Now, MaxClients: 3})

	for _, c := range []string{"a", "b", "c"} {
		ok, _ := rl.Allow(c)
		require.True(t, ok)
		clock.Advance(time.Millisecond)
	}
	ok, _ := rl.Allow("a")
	require.False(t, ok, "a is now the most recently seen")

	for i := 0; i < 100; i++ {
		rl.Allow(strconv.Itoa(i))
	}
	rl.mu.Lock()
	n := len(rl.clients)
	listed := rl.recent.Len()
	rl.mu.Unlock()
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, listed)

	rl = NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, Clock: clock.Now, MaxClients: 2})
	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("a")
	rl.Allow("c")
	rl.mu.Lock()
	_, hasA := rl.clients["a"]
	_, hasB := rl.clients["b"]
	rl.mu.Unlock()
	assert.True(t, hasA)
	assert.False(t, hasB, "least recently seen is evicted")
}

func TestRateLimiter_Middleware(t *testing.T) {
	clock := testutil.NewClock(t0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.5, Burst: 1, Clock: clock.Now})
	f := newFixture(t, WithRateLimiter(rl))

	request := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, request("/api/stats").Code)

	rec := request("/api/stats")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[ErrorResponse](t, rec).Error)

	assert.Equal(t, http.StatusOK, request("/health").Code, "health is never throttled")
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:40000"
	assert.Equal(t, "192.168.1.7", clientKey(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientKey(req))
}
