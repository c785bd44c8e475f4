package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key. A key may make limit
// requests in a burst and then refills at limit per window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   int
	every   rate.Limit
	window  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a limiter and its idle-key cleanup loop. Call Stop
// to end the loop.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		clients: make(map[string]*client),
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		window:  window,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup(window * 2)
	return rl
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle(interval)
		case <-rl.stop:
			return
		}
	}
}

// evictIdle drops keys unseen for longer than idle; their buckets are full
// again by then
func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) clientFor(key string) *client {
	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.clients[key] = c
	}
	c.lastSeen = rl.now()
	return c
}

// Allow takes a token for key and reports whether one was available
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.clientFor(key).limiter.AllowN(rl.now(), 1)
}

// Remaining is the number of whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[key]
	if !ok {
		return rl.limit
	}
	tokens := int(c.limiter.TokensAt(rl.now()))
	if tokens < 0 {
		return 0
	}
	return tokens
}

// Limit is the burst size per key
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// RetryAfterSeconds is how long an exhausted key waits for its next token,
// rounded up to whole seconds
func (rl *RateLimiter) RetryAfterSeconds() int {
	refill := rl.window / time.Duration(rl.limit)
	secs := int((refill + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Stop ends the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// RateLimitKey keys authenticated requests by tenant and anonymous ones by
// client IP
func RateLimitKey(c *gin.Context) string {
	if tenantID, ok := GetTenantID(c); ok {
		return "tenant:" + tenantID.String()
	}
	return "ip:" + c.ClientIP()
}

// RateLimit rejects requests over the limit with 429 and reports the
// remaining budget in X-RateLimit headers
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, RateLimitKey)
}

// RateLimitByKey is RateLimit with a custom key
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(limiter.RetryAfterSeconds()))
			abortWithError(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "Too many requests, please try again later")
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
