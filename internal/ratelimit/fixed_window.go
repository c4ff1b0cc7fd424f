package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"thientam/internal/httpx"
)

var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// FixedWindow counts requests per key in Redis-backed fixed windows, so
// every API instance shares the same quota.
type FixedWindow struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewFixedWindow(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindow, error) {
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "thientam:ratelimit"
	}
	return &FixedWindow{client: client, prefix: prefix, limit: limit, window: window}, nil
}

// Allow reports whether key is still within quota and how many requests
// remain. Redis failures are returned to the caller.
func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, int, error) {
	if strings.TrimSpace(key) == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := incrScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", l.prefix, err)
	}
	remaining := int64(l.limit) - n
	if remaining < 0 {
		remaining = 0
	}
	return n <= int64(l.limit), int(remaining), nil
}

// Middleware limits by client IP. A nil limiter lets everything through,
// and so does a request whose quota could not be checked.
func Middleware(l *FixedWindow, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		ok, remaining, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			httpx.Log(c).Warn("rate limit unavailable", "err", err, "path", c.Request.URL.Path)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": message})
			return
		}
		c.Next()
	}
}
