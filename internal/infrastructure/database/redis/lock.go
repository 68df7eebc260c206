package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock held by another owner")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a single-owner mutex with a lease. Workers take one per run so a
// redelivered request is not evaluated twice at the same time.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLock creates an unacquired lock on name.
func NewLock(client *Client, name string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{client: client, key: "procsynth:lock:" + name, token: uuid.NewString(), ttl: ttl}
}

// TryLock acquires the lock without waiting.
func (l *Lock) TryLock(ctx context.Context) error {
	ok, err := l.client.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheUnavail, "acquire lock")
	}
	if !ok {
		return ErrLockNotAcquired
	}
	return nil
}

// Unlock releases the lock if this owner still holds it.
func (l *Lock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheUnavail, "release lock")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
