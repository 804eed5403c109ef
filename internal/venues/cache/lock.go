package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockTimeout is returned when another writer holds the venue lock for longer than the wait.
var ErrLockTimeout = errors.New("venue is locked by another request")

const lockPrefix = "venue_lock:"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock serializes writers of the same venue across service instances.
type Lock struct {
	Client *redis.Client
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait is how long Acquire polls before giving up.
	Wait         time.Duration
	PollInterval time.Duration
}

func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{
		Client:       client,
		TTL:          ttl,
		Wait:         ttl,
		PollInterval: 50 * time.Millisecond,
	}
}

// Acquire blocks until the venue lock is held, the wait elapses or ctx is done.
// The returned func releases the lock.
func (l *Lock) Acquire(ctx context.Context, venueID string) (func(), error) {
	key := lockPrefix + venueID
	token := uuid.NewString()

	deadline := time.Now().Add(l.Wait)
	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock venue %s: %w", venueID, err)
		}
		if ok {
			return func() {
				// ctx may already be cancelled; the release must still reach Redis.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.Client, []string{key}, token).Err()
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.PollInterval):
		}
	}
}
