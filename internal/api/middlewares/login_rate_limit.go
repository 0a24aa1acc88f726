package middlewares

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/5w1tchy/library-web/internal/api/apperr"
)

// Limiter counts attempts per key. retry is how long the caller should wait
// after a denial.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retry time.Duration, err error)
}

// RedisLimiter is a fixed window counter shared by all instances.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	key = "lw:rl:login:" + key
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}
	if n == 1 {
		_ = l.rdb.Expire(ctx, key, l.window).Err()
	}
	if n > int64(l.max) {
		ttl, err := l.rdb.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

// LocalLimiter is a per-process token bucket per key; max attempts refill
// evenly over window.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache
	every   rate.Limit
	burst   int
}

func NewLocalLimiter(max int, window time.Duration, keys int) (*LocalLimiter, error) {
	c, err := lru.New(keys)
	if err != nil {
		return nil, err
	}
	return &LocalLimiter{buckets: c, every: rate.Every(window / time.Duration(max)), burst: max}, nil
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	var lim *rate.Limiter
	if v, ok := l.buckets.Get(key); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(l.every, l.burst)
		l.buckets.Add(key, lim)
	}
	l.mu.Unlock()

	res := lim.Reserve()
	if d := res.Delay(); d > 0 {
		res.Cancel()
		return false, d, nil
	}
	return true, 0, nil
}

// LoginRateLimit throttles login attempts per client IP. Limiter errors fail
// open.
func LoginRateLimit(l Limiter, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == "" || l == nil {
				next.ServeHTTP(w, r)
				return
			}
			ok, retry, err := l.Allow(r.Context(), ip)
			if err != nil {
				log.WithError(err).Warn("login limiter unavailable; allowing request")
			}
			if !ok {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				log.WithFields(logrus.Fields{"ip": ip, "retry_after": secs}).Warn("too many login attempts")
				apperr.Write(w, r, apperr.Problem{
					Status:    http.StatusTooManyRequests,
					Title:     "Too many login attempts",
					Detail:    "Too many login attempts. Please wait and try again.",
					Retryable: true,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
