package redis

import (
	"context"
	"fmt"
	"time"

	"vendor-payout-ledger/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock implements ports.JobLock with SET NX PX on a single key.
type JobLock struct {
	client *goredis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewJobLock creates a lock named job. The TTL bounds how long a crashed holder
// blocks other instances.
func NewJobLock(client *goredis.Client, job string, ttl time.Duration) *JobLock {
	return &JobLock{
		client: client,
		key:    "joblock:" + job,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire reports whether this instance now holds the lock.
func (l *JobLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis job lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock if it is still held by this instance.
func (l *JobLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("redis job lock release: %w", err)
	}
	return nil
}

var _ ports.JobLock = (*JobLock)(nil)
