package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles per client IP with a token bucket: rate tokens
// refill per second up to burst. Both knobs come from GeneralConfig.
type RateLimiter struct {
	mu       sync.Mutex
	rate     int
	burst    int
	tokens   map[string]int
	lastTime map[string]time.Time

	nowFn func() time.Time
}

func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   make(map[string]int),
		lastTime: make(map[string]time.Time),
		nowFn:    time.Now,
	}
}

// SetClock overrides the refill clock. Tests only.
func (rl *RateLimiter) SetClock(fn func() time.Time) {
	rl.nowFn = fn
}

// Allow consumes one token for ip, refilling for the elapsed time first.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.nowFn()

	if _, exists := rl.tokens[ip]; !exists {
		rl.tokens[ip] = rl.burst
		rl.lastTime[ip] = now
	}

	// The refill clock only advances once a whole token has accrued, so
	// steady sub-second traffic cannot starve the bucket forever.
	tokensToAdd := int(now.Sub(rl.lastTime[ip]).Seconds()) * rl.rate
	if tokensToAdd > 0 {
		rl.lastTime[ip] = now
		rl.tokens[ip] += tokensToAdd
		if rl.tokens[ip] > rl.burst {
			rl.tokens[ip] = rl.burst
		}
	}

	if rl.tokens[ip] <= 0 {
		return false
	}
	rl.tokens[ip]--
	return true
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
