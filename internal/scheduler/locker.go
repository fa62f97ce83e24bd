package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another instance")

// RedisLocker SETNX 租约。Unlock 不释放，租约持续 ttl，
// 同一周期内其他实例的同名任务拿不到锁。
type RedisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 23 * time.Hour
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, prefix: "scheduler:lock:"}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	ok, err := r.rdb.SetNX(ctx, r.prefix+key, uuid.NewString(), r.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "acquire lock")
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return lease{}, nil
}

type lease struct{}

func (lease) Unlock(context.Context) error { return nil }
