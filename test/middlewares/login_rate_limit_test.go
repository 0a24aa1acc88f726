package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func loginFrom(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimit_LocalLimiter(t *testing.T) {
	l, err := mw.NewLocalLimiter(3, time.Hour, 16)
	require.NoError(t, err)
	h := mw.LoginRateLimit(l, quietLog())(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, loginFrom(h, "203.0.113.7").Code, "attempt %d", i+1)
	}
	rec := loginFrom(h, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, loginFrom(h, "203.0.113.8").Code, "other clients keep their own budget")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, errors.New("redis down")
}

func TestLoginRateLimit_FailsOpen(t *testing.T) {
	h := mw.LoginRateLimit(failingLimiter{}, quietLog())(okHandler())
	assert.Equal(t, http.StatusOK, loginFrom(h, "203.0.113.9").Code)
}

func TestLoginRateLimit_Redis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ip := "198.51.100." + time.Now().Format("05")
	rdb.Del(context.Background(), "lw:rl:login:"+ip)
	h := mw.LoginRateLimit(mw.NewRedisLimiter(rdb, 2, time.Minute), quietLog())(okHandler())

	assert.Equal(t, http.StatusOK, loginFrom(h, ip).Code)
	assert.Equal(t, http.StatusOK, loginFrom(h, ip).Code)
	rec := loginFrom(h, ip)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
