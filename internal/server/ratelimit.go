package server

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterSweepInterval = 1000

type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	counter  atomic.Int64
}

func newRateLimiterStore(rps int, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (s *rateLimiterStore) limiterFor(clientIP string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[clientIP]
	if !exists {
		limiter = rate.NewLimiter(s.rps, s.burst)
		s.limiters[clientIP] = limiter
	}

	if s.counter.Add(1)%limiterSweepInterval == 0 {
		s.sweep()
	}
	return limiter
}

// sweep drops limiters whose bucket has refilled; those clients are idle.
func (s *rateLimiterStore) sweep() {
	for clientIP, limiter := range s.limiters {
		if limiter.Tokens() >= float64(s.burst) {
			delete(s.limiters, clientIP)
		}
	}
}

// newRateLimitMiddleware enforces a per-client token bucket. It returns nil when rps is not positive.
func newRateLimitMiddleware(rps int, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	store := newRateLimiterStore(rps, burst)
	return func(c *gin.Context) {
		if !store.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}
