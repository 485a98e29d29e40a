package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides cross-process mutual exclusion for task names.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(context.Context) error, acquired bool, err error)
}

// Deleting only when the stored token still matches keeps an expired holder from
// releasing a lock that another process has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker builds a locker whose keys live under prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "scheduler:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// TryLock attempts to take the lock once without waiting.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := l.prefix + name
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !acquired {
		return nil, false, err
	}

	unlock := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}
