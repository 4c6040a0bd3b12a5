package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Quota enforces a fixed-window request cap per client IP and route. The
// counter lives in redis so every instance shares the same window.
type Quota struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewQuota creates a quota limiter allowing limit requests per window.
func NewQuota(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) *Quota {
	return &Quota{rdb: rdb, limit: limit, window: window, logger: logger}
}

// Handler counts the request against the caller's window and rejects the
// request once the cap is exceeded. Redis outages fail open.
func (q *Quota) Handler() gin.HandlerFunc {
	if q == nil || q.rdb == nil || q.limit <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("quota:%s:%s", c.FullPath(), c.ClientIP())
		ctx := c.Request.Context()

		count, err := q.rdb.Incr(ctx, key).Result()
		if err != nil {
			q.logger.Warn("quota counter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			q.rdb.Expire(ctx, key, q.window)
		}
		if count > int64(q.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": fmt.Sprintf("No more than %d requests per %s", q.limit, q.window),
			})
			return
		}

		c.Next()
	}
}
