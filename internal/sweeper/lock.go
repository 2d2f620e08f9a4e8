package sweeper

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const LockKey = "smartparking:sweeper:lock"

// Locker grants a lease that expires on its own after ttl.
type Locker interface {
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, owner, ttl).Result()
}

// LocalLocker always grants the lease. For single-replica deployments
// without Redis.
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}
