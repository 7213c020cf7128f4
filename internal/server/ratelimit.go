package server

import (
	"container/list"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// idleClientTTL is how long an unused client bucket is kept
	idleClientTTL = 10 * time.Minute
	// defaultMaxClients bounds the number of tracked buckets
	defaultMaxClients = 1024
)

// RateLimiterConfig configures the per-client token bucket
type RateLimiterConfig struct {
	// RequestsPerSecond is the steady refill rate of each client's bucket
	RequestsPerSecond float64
	// Burst is the bucket capacity
	Burst int
	// Logger for throttling events
	Logger *zap.Logger
	// Clock defaults to time.Now
	Clock func() time.Time
	// MaxClients caps the tracked buckets. When full, the least recently
	// seen client is forgotten.
	MaxClients int
}

type clientBucket struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles API requests per client address. Throttled
// requests get 429 with a Retry-After header; /health is never throttled.
type RateLimiter struct {
	config  RateLimiterConfig
	mu      sync.Mutex
	clients map[string]*list.Element
	// recent orders buckets by lastSeen, most recent first
	recent *list.List
}

// NewRateLimiter creates a rate limiter
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Burst < 1 {
		config.Burst = 1
	}
	if config.MaxClients < 1 {
		config.MaxClients = defaultMaxClients
	}
	return &RateLimiter{
		config:  config,
		clients: make(map[string]*list.Element),
		recent:  list.New(),
	}
}

// Allow reports whether a request from client may proceed now, and if not,
// how long until it would
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	now := rl.config.Clock()

	rl.mu.Lock()
	var b *clientBucket
	if el, ok := rl.clients[client]; ok {
		b = el.Value.(*clientBucket)
		rl.recent.MoveToFront(el)
	} else {
		rl.sweep(now)
		for len(rl.clients) >= rl.config.MaxClients {
			rl.evict(rl.recent.Back())
		}
		b = &clientBucket{key: client, limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.clients[client] = rl.recent.PushFront(b)
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops buckets idle for longer than idleClientTTL. Idle buckets sit
// at the back of recent, so it stops at the first live one. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for el := rl.recent.Back(); el != nil; el = rl.recent.Back() {
		if now.Sub(el.Value.(*clientBucket).lastSeen) <= idleClientTTL {
			return
		}
		rl.evict(el)
	}
}

// evict forgets one bucket. Caller holds mu.
func (rl *RateLimiter) evict(el *list.Element) {
	b := rl.recent.Remove(el).(*clientBucket)
	delete(rl.clients, b.key)
}

// Middleware applies the limiter to every route except /health
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		client := clientKey(r)
		if ok, wait := rl.Allow(client); !ok {
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			rl.config.Logger.Debug("request throttled",
				zap.String("client", client),
				zap.Duration("retry_after", wait))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by remote IP
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
