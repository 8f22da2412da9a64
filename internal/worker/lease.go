package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a sweep so only one replica runs it at a time.
type Locker interface {
	// TryLock returns ok=false when another holder owns the lease.
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// LocalLocker always grants the lease. Used when Redis is not configured.
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		// On failure the lease simply expires after ttl.
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}

// NewLocker picks the Redis lease when a client is available.
func NewLocker(client *redis.Client, ttl time.Duration) Locker {
	if client == nil {
		return LocalLocker{}
	}
	return NewRedisLocker(client, "studio:reconciliation:lease", ttl)
}
