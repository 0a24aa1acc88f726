package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix    = "lw:sess:"
	redisOpTimeout = 300 * time.Millisecond
)

// RedisStore keeps one hash per browser session id, expiring together with
// the token it holds.
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	opTimeout time.Duration
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: redisPrefix, opTimeout: redisOpTimeout}
}

func (r *RedisStore) Scope(sid string) Store {
	return &redisScope{parent: r, key: r.prefix + sid}
}

type redisScope struct {
	parent *RedisStore
	key    string
}

func (s *redisScope) Load(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.parent.opTimeout)
	defer cancel()

	fields, err := s.parent.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return Session{}, ErrNoSession
	}
	rec := record{Token: fields["token"], TokenExpiration: fields["tokenExpiration"]}
	if raw := fields["sessionInfo"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &rec.SessionInfo)
	}
	return fromRecord(rec)
}

// Save replaces all three fields and the key expiry in one MULTI block.
func (s *redisScope) Save(ctx context.Context, sess Session) error {
	rec := toRecord(sess)
	info, err := json.Marshal(rec.SessionInfo)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.parent.opTimeout)
	defer cancel()

	_, err = s.parent.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key,
			"token", rec.Token,
			"tokenExpiration", rec.TokenExpiration,
			"sessionInfo", string(info),
		)
		pipe.ExpireAt(ctx, s.key, sess.Expiry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *redisScope) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.parent.opTimeout)
	defer cancel()
	if err := s.parent.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
