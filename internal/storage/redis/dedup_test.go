package redis

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDeduplicator(t *testing.T) {
	ctx := context.Background()
	d := NewDeduplicator(newTestClient(t), time.Minute)
	key := uuid.NewString()

	ok, err := d.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail")

	require.NoError(t, d.Release(ctx, key))

	ok, err = d.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be claimed again")
	require.NoError(t, d.Release(ctx, key))
}

func TestDeduplicator_Concurrent(t *testing.T) {
	ctx := context.Background()
	d := NewDeduplicator(newTestClient(t), time.Minute)
	key := uuid.NewString()
	t.Cleanup(func() { _ = d.Release(ctx, key) })

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.Acquire(ctx, key)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestNewDeduplicator_DefaultTTL(t *testing.T) {
	d := NewDeduplicator(goredis.NewClient(&goredis.Options{}), 0)
	assert.Equal(t, DefaultTTL, d.ttl)
}
