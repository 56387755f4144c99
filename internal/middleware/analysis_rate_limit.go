package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// AnalysisRateLimit caps manual analysis triggers per day. Every run spends
// AI tokens, so runaway retry loops are cut off rather than billed. The
// counter resets at midnight; Redis being down degrades open.
func AnalysisRateLimit(redisClient *redis.Client, maxPerDay int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || redisClient == nil {
			c.Next()
			return
		}
		ctx := context.Background()

		today := time.Now().Format("2006-01-02")
		key := fmt.Sprintf("analysis_limit:%s", today)

		count, err := redisClient.Get(ctx, key).Int()
		if err == redis.Nil {
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			if err := redisClient.Set(ctx, key, 1, midnight.Sub(now)).Err(); err != nil {
				c.Next()
				return
			}
		} else if err != nil {
			c.Next()
			return
		} else if count >= maxPerDay {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             "analysis_rate_limit_exceeded",
				"message":           "Too many analysis runs today. Wait for the scheduled run or try again tomorrow.",
				"retry_after_hours": int(ttl.Hours()),
				"runs_today":        count,
				"max_runs_per_day":  maxPerDay,
			})
			c.Abort()
			return
		} else {
			redisClient.Incr(ctx, key)
		}

		c.Next()
	}
}
