package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// Clients idle for longer than IdleTTL are forgotten by Cleanup.
	IdleTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 300
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.Burst,
		idleTTL: config.IdleTTL,
		now:     time.Now,
	}
}

// reserve takes a token for key. When none is available it returns false
// and how long the client should wait.
func (rl *RateLimiter) reserve(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now

	if cl.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := cl.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait := rl.reserve(c.ClientIP())
		if !allowed {
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// Cleanup drops idle clients and returns how many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
