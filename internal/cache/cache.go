// Package cache keeps rarely changing lookup lists (categories, editions,
// publishers...) close to the handlers that render form dropdowns.
//
// Keys are namespaced by a version number; Bump moves every reader to a new
// namespace at once so admin edits are visible immediately.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const versionKey = "lw:opts:ver"

type Cache struct {
	rdb     *redis.Client
	local   *lru.Cache
	ttl     time.Duration
	shortTO time.Duration
	log     *logrus.Entry

	mu       sync.Mutex
	localVer int64
	warned   bool
}

type localItem struct {
	data    []byte
	expires time.Time
}

// New returns a Redis-backed cache, or an in-process one when rdb is nil.
func New(rdb *redis.Client, ttl time.Duration, log *logrus.Entry) (*Cache, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &Cache{rdb: rdb, ttl: ttl, shortTO: 150 * time.Millisecond, log: log, localVer: 1}
	if rdb == nil {
		l, err := lru.New(256)
		if err != nil {
			return nil, err
		}
		c.local = l
	}
	return c, nil
}

// prefix resolves the current namespace. Redis failures fall back to v1.
func (c *Cache) prefix(ctx context.Context) string {
	if c.rdb == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return "v" + strconv.FormatInt(c.localVer, 10) + ":"
	}
	ctx, cancel := context.WithTimeout(ctx, c.shortTO)
	defer cancel()
	ver, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil {
		if err != redis.Nil {
			c.warnOnce(err, "cache version read failed; using v1")
		}
		ver = 1
	}
	return "lw:opts:v" + strconv.FormatInt(ver, 10) + ":"
}

// Get decodes the cached value of key into dst and reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	k := c.prefix(ctx) + key
	var raw []byte
	if c.rdb == nil {
		v, ok := c.local.Get(k)
		if !ok {
			return false
		}
		it := v.(localItem)
		if time.Now().After(it.expires) {
			c.local.Remove(k)
			return false
		}
		raw = it.data
	} else {
		cctx, cancel := context.WithTimeout(ctx, c.shortTO)
		defer cancel()
		b, err := c.rdb.Get(cctx, k).Bytes()
		if err != nil {
			if err != redis.Nil {
				c.warnOnce(err, "cache get failed; bypassing cache")
			}
			return false
		}
		raw = b
	}
	return json.Unmarshal(raw, dst) == nil
}

func (c *Cache) Set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	k := c.prefix(ctx) + key
	if c.rdb == nil {
		c.local.Add(k, localItem{data: b, expires: time.Now().Add(c.ttl)})
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.shortTO)
	defer cancel()
	if err := c.rdb.SetEx(cctx, k, b, c.ttl).Err(); err != nil {
		c.warnOnce(err, "cache set failed")
	}
}

// Bump invalidates every cached entry. Call it after a successful write to
// any lookup resource.
func (c *Cache) Bump(ctx context.Context) {
	if c.rdb == nil {
		c.mu.Lock()
		c.localVer++
		c.mu.Unlock()
		c.local.Purge()
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.shortTO)
	defer cancel()
	if _, err := c.rdb.Incr(cctx, versionKey).Result(); err != nil {
		c.log.WithError(err).Warn("cache version bump failed; entries expire with their ttl")
	}
}

func (c *Cache) warnOnce(err error, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warned {
		return
	}
	c.warned = true
	c.log.WithError(err).Warn(msg + " (muting further cache warnings)")
}
