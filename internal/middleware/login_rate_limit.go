package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// LoginRateLimit throttles authentication attempts per client IP with an
// escalating block: exceeding maxAttempts within the window blocks the IP
// for blockDuration. Degrades open when Redis is unavailable.
func LoginRateLimit(redisClient *redis.Client, maxAttempts int, window, blockDuration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}
		ctx := context.Background()
		clientIP := c.ClientIP()

		blockKey := fmt.Sprintf("login_blocked:%s", clientIP)
		blocked, err := redisClient.Get(ctx, blockKey).Result()
		if err == nil && blocked == "1" {
			ttl, _ := redisClient.TTL(ctx, blockKey).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":                 "too_many_login_attempts",
				"message":               "Too many login attempts. Try again later.",
				"blocked_until_minutes": int(ttl.Minutes()),
			})
			c.Abort()
			return
		}

		attemptKey := fmt.Sprintf("login_attempts:%s", clientIP)
		count, err := redisClient.Incr(ctx, attemptKey).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(ctx, attemptKey, window)
		}
		if count > int64(maxAttempts) {
			_ = redisClient.Set(ctx, blockKey, "1", blockDuration).Err()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "too_many_login_attempts",
				"message":             "Too many login attempts. Your address is blocked temporarily.",
				"blocked_for_minutes": int(blockDuration.Minutes()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
