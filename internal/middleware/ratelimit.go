// ratelimit.go provides Gin middleware that throttles requests per client
// address, returning 429 responses once a client has spent its token bucket.
// Buckets live in process memory by default, or in Redis when several server
// instances must share them.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/resourcehub/resourcehub/internal/config"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Name prefixes the bucket keys so profiles do not share buckets.
	Name string
	// RequestsPerMinute is the sustained refill rate.
	RequestsPerMinute int
	// BurstSize is the bucket capacity.
	BurstSize int
	// CleanupInterval is how often idle in-memory buckets are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the general API profile from configuration.
func DefaultRateLimitConfig(cfg *config.RateLimitConfig) RateLimitConfig {
	rpm, burst := 60, 10
	if cfg != nil && cfg.RequestsPerMinute > 0 {
		rpm = cfg.RequestsPerMinute
	}
	if cfg != nil && cfg.Burst > 0 {
		burst = cfg.Burst
	}
	return RateLimitConfig{
		Name:              "api",
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns the stricter profile for the admin login.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Name:              "auth",
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// Decision is the outcome of one Take call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Take(ctx context.Context, key string) (Decision, error)
	Config() RateLimitConfig
	Stop()
}

// rateLimitEntry is one client's token bucket.
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is an in-process token bucket limiter.
type RateLimiter struct {
	config   RateLimitConfig
	entries  map[string]*rateLimitEntry
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  cfg,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup()
	return rl
}

// cleanup periodically removes buckets idle for ten minutes.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Config implements Limiter.
func (rl *RateLimiter) Config() RateLimitConfig {
	return rl.config
}

// Take implements Limiter. It never fails.
func (rl *RateLimiter) Take(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	burst := float64(rl.config.BurstSize)
	perSecond := float64(rl.config.RequestsPerMinute) / 60.0

	entry, ok := rl.entries[key]
	if !ok {
		entry = &rateLimitEntry{tokens: burst, lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate).Seconds()
		entry.tokens = min(burst, entry.tokens+elapsed*perSecond)
		entry.lastUpdate = now
	}

	if entry.tokens >= 1 {
		entry.tokens--
		return Decision{Allowed: true, Remaining: int(entry.tokens)}, nil
	}

	var retry time.Duration
	if perSecond > 0 {
		retry = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
}

// RedisLimiter keeps the buckets in Redis using the GCRA implementation of
// redis_rate, so every server instance draws from the same bucket.
type RedisLimiter struct {
	config  RateLimitConfig
	client  *redis.Client
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter connects to redisURL (redis://[:password@]host:port/db) and
// verifies the connection.
func NewRedisLimiter(ctx context.Context, redisURL string, cfg RateLimitConfig) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisLimiter(client, cfg), nil
}

func newRedisLimiter(client *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		config:  cfg,
		client:  client,
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.BurstSize,
			Period: time.Minute,
		},
	}
}

// Take implements Limiter.
func (rl *RedisLimiter) Take(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, "ratelimit:"+key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Config implements Limiter.
func (rl *RedisLimiter) Config() RateLimitConfig {
	return rl.config
}

// Stop closes the Redis client.
func (rl *RedisLimiter) Stop() {
	if err := rl.client.Close(); err != nil {
		slog.Warn("failed to close redis client", "error", err)
	}
}

// NewLimiter returns a RedisLimiter when rl.RedisURL is set and an in-memory
// limiter otherwise.
func NewLimiter(ctx context.Context, rl *config.RateLimitConfig, cfg RateLimitConfig) (Limiter, error) {
	if rl != nil && rl.RedisURL != "" {
		return NewRedisLimiter(ctx, rl.RedisURL, cfg)
	}
	return NewRateLimiter(cfg), nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests per
// client address. If the limiter itself fails the request is let through.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	cfg := limiter.Config()
	return func(c *gin.Context) {
		key := cfg.Name + ":" + clientKey(c)

		d, err := limiter.Take(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retry := int(d.RetryAfter.Round(time.Second).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}

// clientKey identifies the caller for throttling: the admin user when a
// session is present, the client address otherwise.
func clientKey(c *gin.Context) string {
	if user := c.GetString(AdminUserKey); user != "" {
		return "admin:" + user
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
