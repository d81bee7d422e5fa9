package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const checkoutLockPrefix = "checkout:inflight:"

// releaseLockScript deletes the lock only while it still carries the
// caller's token, so an expired holder cannot drop a newer lock.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// CheckoutLock implements repository.CheckoutLock with SET NX and a TTL, so a
// crashed submission never holds a session forever.
type CheckoutLock struct {
	client redis.Cmdable
}

// NewCheckoutLock creates a Redis-backed checkout lock.
func NewCheckoutLock(client redis.Cmdable) *CheckoutLock {
	return &CheckoutLock{client: client}
}

// Acquire implements repository.CheckoutLock.
func (l *CheckoutLock) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, checkoutLockPrefix+sessionID, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx checkout lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release implements repository.CheckoutLock.
func (l *CheckoutLock) Release(ctx context.Context, sessionID, token string) error {
	if err := releaseLockScript.Run(ctx, l.client, []string{checkoutLockPrefix + sessionID}, token).Err(); err != nil {
		return fmt.Errorf("redis release checkout lock: %w", err)
	}
	return nil
}
