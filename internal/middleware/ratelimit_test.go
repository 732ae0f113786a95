package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsbus/bus-booking/internal/config"
)

func setupLimiter(t *testing.T, cfg config.RateLimitConfig) echo.HandlerFunc {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mw := NewTokenBucket(cfg, rdb)
	return mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func hitOnce(t *testing.T, h echo.HandlerFunc) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/routes", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/routes")
	require.NoError(t, h(c))
	return rec
}

func TestTokenBucketExhaustsAndRejects(t *testing.T) {
	h := setupLimiter(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "rl",
	})

	assert.Equal(t, http.StatusOK, hitOnce(t, h).Code)
	assert.Equal(t, http.StatusOK, hitOnce(t, h).Code)

	rec := hitOnce(t, h)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketSetsRemainingHeader(t *testing.T) {
	h := setupLimiter(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "rl",
	})

	rec := hitOnce(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil)
	h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, hitOnce(t, h).Code)
	}
}
