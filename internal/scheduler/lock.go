package scheduler

import (
	"context"
	"time"

	"github.com/kolektahq/kolekta/internal/config"
	"github.com/redis/go-redis/v9"
)

// RunLock gates one execution of a job per key. With redis configured
// the lease also covers multiple scheduler instances; without it each
// process only guards against its own reruns.
type RunLock interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

func newRunLock(client *redis.Client, cfg config.SchedulerConfig) RunLock {
	if client == nil {
		return &localLock{seen: make(map[string]struct{})}
	}
	ttl, err := time.ParseDuration(cfg.LockTTL)
	if err != nil || ttl <= 0 {
		ttl = 26 * time.Hour
	}
	return &redisLock{client: client, ttl: ttl}
}

type redisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func (l *redisLock) Acquire(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, "kolekta:scheduler:run:"+key, "1", l.ttl).Result()
}

type localLock struct {
	seen map[string]struct{}
}

func (l *localLock) Acquire(_ context.Context, key string) (bool, error) {
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = struct{}{}
	return true, nil
}
