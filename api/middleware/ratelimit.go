package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/models"
)

const apiKeyCtxKey = "api_key"

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu       sync.Mutex
	cfg      config.RateLimitConfig
	limiters map[string]*limiterEntry
}

func (s *limiterSet) get(identity string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.limiters[identity]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst),
		}
		s.limiters[identity] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictIdle drops limiters not seen since cutoff.
func (s *limiterSet) evictIdle(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, id)
		}
	}
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate.
//
// Scraping launches real browsers, so the default rate is low. Entries
// unused for 1 hour are evicted lazily, at most once every 5 minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := &limiterSet{cfg: cfg, limiters: make(map[string]*limiterEntry)}

	var sweepMu sync.Mutex
	lastSweep := time.Now()

	return func(c *gin.Context) {
		now := time.Now()

		sweepMu.Lock()
		if now.Sub(lastSweep) > 5*time.Minute {
			lastSweep = now
			sweepMu.Unlock()
			set.evictIdle(now.Add(-time.Hour))
		} else {
			sweepMu.Unlock()
		}

		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.ClientIP()
		if key, ok := c.Get(apiKeyCtxKey); ok {
			identity = key.(string)
		}

		if !set.get(identity, now).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ClientErrorResponse{
				Error: "rate limit exceeded, please slow down",
				Code:  models.ErrCodeRateLimited,
			})
			return
		}

		c.Next()
	}
}
