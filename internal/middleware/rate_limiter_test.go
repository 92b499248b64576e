package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/errors"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestMemoryWindowStore(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryWindowStore(5, 15*time.Minute)
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
	}
	allowed, _ := store.Allow("10.0.0.1")
	assert.False(t, allowed)

	allowed, _ = store.Allow("10.0.0.2")
	assert.True(t, allowed, "other clients have their own window")

	now = now.Add(15 * time.Minute)
	allowed, _ = store.Allow("10.0.0.1")
	assert.True(t, allowed, "a new window starts after expiry")
}

func TestRedisWindowStore(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewRedisWindowStore(rdb, "auth", 5, 15*time.Minute, zerolog.Nop())
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
		now = now.Add(time.Minute)
	}
	allowed, err := store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, mr.Exists("rate_limit:auth:10.0.0.1"))

	// the first attempts slide out of the window one by one
	now = now.Add(11 * time.Minute)
	allowed, err = store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowStores_DeniedAttemptsAreNotCounted(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	redisStore := NewRedisWindowStore(rdb, "auth", 2, 10*time.Minute, zerolog.Nop())
	memoryStore := NewMemoryWindowStore(2, 10*time.Minute)

	stores := []struct {
		name   string
		store  interface{ Allow(string) (bool, error) }
		setNow func(func() time.Time)
	}{
		{"redis", redisStore, func(f func() time.Time) { redisStore.now = f }},
		{"memory", memoryStore, func(f func() time.Time) { memoryStore.now = f }},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			now := start
			tt.setNow(func() time.Time { return now })

			for i := 0; i < 2; i++ {
				allowed, err := tt.store.Allow("10.0.0.1")
				require.NoError(t, err)
				assert.True(t, allowed)
			}
			// keep retrying through the whole window
			for i := 0; i < 9; i++ {
				now = now.Add(time.Minute)
				allowed, err := tt.store.Allow("10.0.0.1")
				require.NoError(t, err)
				assert.False(t, allowed, "minute %d", i+1)
			}

			now = start.Add(10 * time.Minute)
			allowed, err := tt.store.Allow("10.0.0.1")
			require.NoError(t, err)
			assert.True(t, allowed, "block ends with the window")
		})
	}

	members, err := mr.ZMembers("rate_limit:auth:10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRedisWindowStore_FailsOpen(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	store := NewRedisWindowStore(rdb, "general", 1, time.Minute, zerolog.Nop())
	mr.Close()

	allowed, err := store.Allow("10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimit_Middleware(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var httpErr *errors.HTTPError
		if errors.As(err, &httpErr) {
			_ = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, RateLimit(NewMemoryWindowStore(1, time.Minute), zerolog.Nop()))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("127.0.0.1").Code)
	limited := do("127.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), "RATE_LIMITED")
	assert.Equal(t, http.StatusOK, do("192.168.1.1").Code)
}

func TestNewLimiterStore(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	assert.IsType(t, &RedisWindowStore{}, NewLimiterStore(rdb, "auth", 5, time.Minute, zerolog.Nop()))
	assert.IsType(t, &MemoryWindowStore{}, NewLimiterStore(nil, "auth", 5, time.Minute, zerolog.Nop()))
}
