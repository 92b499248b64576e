package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"todoapp/internal/errors"
)

const redisLimiterTimeout = 500 * time.Millisecond

// slidingWindowScript trims the window and records the attempt only when it
// is admitted, so denied retries do not extend a block.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisWindowStore is a sliding window limiter shared by every API process:
// each admitted request is a member of a sorted set scored by its arrival
// time in milliseconds.
type RedisWindowStore struct {
	rdb    *redis.Client
	name   string
	limit  int
	window time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// Ensure RedisWindowStore implements echo's RateLimiterStore
var _ echomw.RateLimiterStore = (*RedisWindowStore)(nil)

// NewRedisWindowStore allows limit requests per window for each identifier.
func NewRedisWindowStore(rdb *redis.Client, name string, limit int, window time.Duration, log zerolog.Logger) *RedisWindowStore {
	return &RedisWindowStore{
		rdb:    rdb,
		name:   name,
		limit:  limit,
		window: window,
		log:    log,
		now:    time.Now,
	}
}

// Allow reports whether the attempt is within the limit and records it if
// so. Redis failures let the request through.
func (s *RedisWindowStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisLimiterTimeout)
	defer cancel()

	key := fmt.Sprintf("rate_limit:%s:%s", s.name, identifier)
	admitted, err := slidingWindowScript.Run(ctx, s.rdb, []string{key},
		s.now().UnixMilli(), s.window.Milliseconds(), s.limit, uuid.NewString()).Int()
	if err != nil {
		s.log.Warn().Err(err).Str("limiter", s.name).Msg("rate limit check failed, allowing request")
		return true, nil
	}
	return admitted == 1, nil
}

// MemoryWindowStore is a fixed window limiter local to the process, used when
// no Redis server is configured. Like the Redis store it counts admitted
// requests only.
type MemoryWindowStore struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitorWindow
	lastSweep time.Time
}

type visitorWindow struct {
	start time.Time
	count int
}

// Ensure MemoryWindowStore implements echo's RateLimiterStore
var _ echomw.RateLimiterStore = (*MemoryWindowStore)(nil)

// NewMemoryWindowStore allows limit requests per window for each identifier.
func NewMemoryWindowStore(limit int, window time.Duration) *MemoryWindowStore {
	return &MemoryWindowStore{
		limit:    limit,
		window:   window,
		now:      time.Now,
		visitors: make(map[string]*visitorWindow),
	}
}

func (s *MemoryWindowStore) Allow(identifier string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.window {
		for id, v := range s.visitors {
			if now.Sub(v.start) >= s.window {
				delete(s.visitors, id)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[identifier]
	if !ok || now.Sub(v.start) >= s.window {
		v = &visitorWindow{start: now}
		s.visitors[identifier] = v
	}
	if v.count >= s.limit {
		return false, nil
	}
	v.count++
	return true, nil
}

// NewLimiterStore picks the Redis store when rdb is set, the in-memory one
// otherwise.
func NewLimiterStore(rdb *redis.Client, name string, limit int, window time.Duration, log zerolog.Logger) echomw.RateLimiterStore {
	if rdb != nil {
		return NewRedisWindowStore(rdb, name, limit, window, log)
	}
	return NewMemoryWindowStore(limit, window)
}

// RateLimit limits requests per client IP using store.
func RateLimit(store echomw.RateLimiterStore, log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.Warn().Str("ip", identifier).Str("path", c.Path()).Msg("rate limit exceeded")
			return errors.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later", "RATE_LIMITED")
		},
	})
}
