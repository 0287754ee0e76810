package middleware

import (
	"net/http"
	"sync"
	"time"

	"stocklink/internal/apierror"

	"github.com/gin-gonic/gin"
)

// rateEntry tracks request counts per client key within a sliding window.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

// Expired entries are purged periodically so IPs that never return do not
// accumulate forever.
const purgeInterval = 5 * time.Minute

// RateLimiter returns a sliding-window rate limiter keyed by client IP.
// Each instance keeps its own counters, so the webhook group's tighter
// limiter does not interfere with the API-wide one.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	var (
		entries   = make(map[string]*rateEntry)
		entriesMu sync.Mutex
	)

	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			entriesMu.Lock()
			for key, entry := range entries {
				entry.mu.Lock()
				expired := now.After(entry.windowEnd)
				entry.mu.Unlock()
				if expired {
					delete(entries, key)
				}
			}
			entriesMu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := c.ClientIP()

		entriesMu.Lock()
		entry, exists := entries[key]
		if !exists {
			entry = &rateEntry{}
			entries[key] = entry
		}
		entriesMu.Unlock()

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			entry.count = 0
			entry.windowEnd = now.Add(window)
		}

		entry.count++
		if entry.count > limit {
			c.Header("Retry-After", entry.windowEnd.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests"))
			return
		}
		c.Next()
	}
}
