package pgrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock implements the per-(user, dataset) advisory lock spec.md §4.5
// requires BatchedDriver to hold for its whole run. Grounded on
// original_source/data_processor/utils/background_inference_task.py's
// BackgroundInferenceTask.dataset_lock, a Django cache.set/cache.delete
// context manager; SETNX-with-TTL is the same idea over go-redis,
// released via defer the way the Python try/finally releases it.
type RedisLock struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisLock returns a RedisLock with the given TTL, which bounds how
// long a lock survives a worker crash before another run can proceed.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLock{Client: client, TTL: ttl}
}

func lockKey(user, dataset string) string {
	return fmt.Sprintf("lock_%s_%s", user, dataset)
}

// Lock attempts to acquire the dataset's lock with SETNX. acquired is
// false (with a nil error and nil unlock) when another run already holds
// it — the caller treats that as spec's ConcurrentRun/EXIT_SILENT, not a
// fault.
func (l *RedisLock) Lock(ctx context.Context, user, dataset string) (unlock func(), acquired bool, err error) {
	key := lockKey(user, dataset)
	ok, err := l.Client.SetNX(ctx, key, "true", l.TTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("pgrepo: acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock = func() {
		// Best-effort release; a crashed worker still self-heals via TTL.
		l.Client.Del(context.Background(), key)
	}
	return unlock, true, nil
}
