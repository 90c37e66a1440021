package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mauth/internal/config"
	"github.com/xxxsen/mauth/internal/metrics"
	"github.com/xxxsen/mauth/internal/pkg/errcode"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
	"github.com/xxxsen/mauth/internal/pkg/response"
)

const msgTooMany = "Too many requests, please try again later"

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func NewLimiter(ctx context.Context, cfg config.RateLimitConfig) (Limiter, error) {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	switch cfg.Type {
	case config.LimiterMemory, "":
		return NewMemoryLimiter(cfg.Requests, window, cfg.CacheSize), nil
	case config.LimiterRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisLimiter(client, cfg.Requests, window), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit type: %s", cfg.Type)
	}
}

type windowCounter struct {
	start time.Time
	count int
}

type MemoryLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters *expirable.LRU[string, *windowCounter]
	now      func() time.Time
}

// NewMemoryLimiter keeps at most size keys; the least recently seen key is
// dropped first, and idle keys expire after one window.
func NewMemoryLimiter(limit int, window time.Duration, size int) *MemoryLimiter {
	if size <= 0 {
		size = 10000
	}
	return &MemoryLimiter{
		limit:    limit,
		window:   window,
		counters: expirable.NewLRU[string, *windowCounter](size, nil, window),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	wc, ok := l.counters.Get(key)
	if !ok || now.Sub(wc.start) >= l.window {
		wc = &windowCounter{start: now}
		l.counters.Add(key, wc)
	}
	wc.count++
	return wc.count <= l.limit, nil
}

var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter shares counters across replicas.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "mauth:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}
	n, err := incrWindow.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(l.limit), nil
}

// RateLimit keys on client IP and route. A limiter failure lets the request
// through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := strings.Join([]string{ip, path}, "|")

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Error("rate limiter failed",
				zap.String("path", path),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
				zap.String("ip", ip),
				zap.String("path", path),
			)
			metrics.RecordRateLimited(path)
			response.Abort(c, errcode.HTTPStatus(appErr.KindTooMany), msgTooMany)
			return
		}
		c.Next()
	}
}
