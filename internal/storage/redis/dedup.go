// Package redis stores checkout idempotency keys in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/digigoods/internal/domain/checkout"
)

const (
	keyPrefix = "digigoods:checkout:idempotency:"
	// DefaultTTL is how long a used idempotency key is remembered.
	DefaultTTL = 24 * time.Hour
)

var _ checkout.Deduplicator = (*Deduplicator)(nil)

// Deduplicator claims idempotency keys with SET NX, so only the first of
// several concurrent requests carrying the same key proceeds.
type Deduplicator struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewDeduplicator returns a Deduplicator keeping keys for ttl. A zero ttl
// selects DefaultTTL.
func NewDeduplicator(client goredis.UniversalClient, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduplicator{client: client, ttl: ttl}
}

// Acquire claims key, reporting false if it was claimed within the TTL.
func (d *Deduplicator) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "setnx")
	}
	return ok, nil
}

// Release forgets key.
func (d *Deduplicator) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "del")
	}
	return nil
}

// Ping checks connectivity. It backs the readiness check.
func (d *Deduplicator) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
