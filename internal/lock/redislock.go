package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is already held elsewhere and all
// retries have been exhausted.
var ErrNotAcquired = errors.New("lock: not acquired")

// releaseScript deletes the lock key only when the stored token matches, so a
// lock that expired and was re-acquired elsewhere is never released by the
// previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker provides short-lived mutual exclusion keyed by an arbitrary string,
// backed by Redis SET NX.
type Locker struct {
	R       *redis.Client
	TTL     time.Duration
	Retries int
	Backoff time.Duration
}

// Lease is a held lock. Release it when the critical section ends.
type Lease struct {
	r     *redis.Client
	key   string
	token string
}

// CustomerKey builds the lock key guarding a customer's address book.
func CustomerKey(customerID string) string {
	return "lock:customer:" + customerID
}

// Acquire attempts to take the lock, retrying with a fixed backoff. The
// returned lease must be released by the caller.
func (l Locker) Acquire(ctx context.Context, key string) (*Lease, error) {
	if l.R == nil {
		return nil, errors.New("lock: nil redis client")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	attempts := l.Retries + 1
	for i := 0; i < attempts; i++ {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return &Lease{r: l.R, key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, ErrNotAcquired
}

// Release gives the lock back. Releasing an expired or stolen lease is a no-op.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.r == nil {
		return nil
	}
	return releaseScript.Run(ctx, le.r, []string{le.key}, le.token).Err()
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
