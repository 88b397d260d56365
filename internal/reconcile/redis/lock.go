package redis

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const lockPrefix = "payment_lock:"

// Lock is a best-effort per-payment mutex backed by SET NX with a TTL.
// The TTL bounds how long a crashed holder can block its payment; it is
// not a fencing token, so callers must stay correct without it.
type Lock struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewLock(client *goredis.Client, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{client: client, ttl: ttl}
}

func (l *Lock) Acquire(ctx context.Context, paymentID string) (bool, error) {
	return l.client.SetNX(ctx, lockPrefix+paymentID, "locked", l.ttl).Result()
}

func (l *Lock) Release(ctx context.Context, paymentID string) error {
	return l.client.Del(ctx, lockPrefix+paymentID).Err()
}
