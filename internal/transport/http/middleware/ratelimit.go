package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"

	"prepai/internal/transport/http/response"
)

// RateLimit enforces a fixed-window request cap per client IP, counted in
// redis so all request paths share one budget. Redis errors fail open: a
// broken limiter should not take the API down with it.
func RateLimit(client *redisv9.Client, scope string, limit int, window time.Duration, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", scope, c.ClientIP())

		// INCR and the TTL set travel in one pipeline, and ExpireNX runs on
		// every request, so a counter can never get stuck without an expiry.
		pipe := client.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			c.Next()
			return
		}
		if incr.Val() > int64(limit) {
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequests, message)
			c.Abort()
			return
		}
		c.Next()
	}
}
