package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

var (
	rlMu        sync.Mutex
	buckets     = map[string]*bucket{}
	window      = 10 * time.Second
	capacity    = 5
	refillPerWd = capacity
)

// SetRateLimitConfig tunes the token bucket; call at startup.
func SetRateLimitConfig(win time.Duration, cap int) {
	rlMu.Lock()
	window = win
	capacity = cap
	refillPerWd = cap
	rlMu.Unlock()
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	return strconv.FormatUint(uint64(CurrentUserID(c)), 10) + "@" + clientIP(c)
}

// Allow consumes one token for key if available. The bucket refills
// proportionally over the configured window.
func Allow(key string) bool {
	now := time.Now()
	rlMu.Lock()
	defer rlMu.Unlock()
	b := buckets[key]
	if b == nil {
		b = &bucket{tokens: capacity, lastRefill: now}
		buckets[key] = b
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		add := int(float64(refillPerWd) * (float64(elapsed) / float64(window)))
		if add > 0 {
			b.tokens += add
			if b.tokens > capacity {
				b.tokens = capacity
			}
			b.lastRefill = now
		}
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// RateLimit guards the model-calling endpoints with a per user@ip token
// bucket.
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Allow(userKey(c)) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		c.Next()
	}
}
