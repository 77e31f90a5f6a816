// internal/api/middleware.go
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/CineWeaverMCP/internal/config"
)

const sessionCookieName = "cineweaver_session"

// sessionIDKey gin context key holding the session id
const sessionIDKey = "session_id"

// SessionMiddleware assigns a uuid session cookie to every client.
// The id is the only session state the client carries; content lives
// server-side in the SessionStore.
func SessionMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(sessionCookieName)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// SessionID returns the session id stored by SessionMiddleware
func SessionID(c *gin.Context) string {
	if id, exists := c.Get(sessionIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// tokenBucket is a simple refillable counter
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// RateLimiter limits requests per client key using token buckets
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*tokenBucket
	maxTokens  float64
	refillRate float64
}

// NewRateLimiter creates a limiter allowing maxRequests per window
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	limiter := &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		maxTokens:  float64(maxRequests),
		refillRate: float64(maxRequests) / window.Seconds(),
	}
	go limiter.cleanup()
	return limiter
}

// Allow consumes one token for the key if available
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &tokenBucket{
			tokens:     rl.maxTokens,
			maxTokens:  rl.maxTokens,
			refillRate: rl.refillRate,
			lastRefill: now,
		}
		rl.buckets[key] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * bucket.refillRate
	if bucket.tokens > bucket.maxTokens {
		bucket.tokens = bucket.maxTokens
	}
	bucket.lastRefill = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// cleanup drops buckets that refilled completely and went idle
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			if time.Since(bucket.lastRefill) > 10*time.Minute {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware rejects requests over the per-client budget
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := SessionID(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "Too many requests. Please slow down.",
				"code":  ErrCodeRateLimited,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
