package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginThrottle_Attempt(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	throttle := NewLoginThrottle(client, 3, 15*time.Minute, nil)

	for i := 0; i < 3; i++ {
		assert.True(t, throttle.Attempt(ctx, "a@x.com"), "attempt %d", i+1)
	}
	assert.False(t, throttle.Attempt(ctx, "a@x.com"))
	assert.True(t, throttle.Attempt(ctx, "b@x.com"))

	assert.Equal(t, 15*time.Minute, mr.TTL("login:failures:a@x.com"))
}

func TestLoginThrottle_WindowAnchoredAtFirstAttempt(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	throttle := NewLoginThrottle(client, 2, time.Minute, nil)

	require.True(t, throttle.Attempt(ctx, "a@x.com"))
	mr.FastForward(40 * time.Second)
	require.True(t, throttle.Attempt(ctx, "a@x.com"))
	assert.Equal(t, 20*time.Second, mr.TTL("login:failures:a@x.com"))
	assert.False(t, throttle.Attempt(ctx, "a@x.com"))

	mr.FastForward(21 * time.Second)
	assert.True(t, throttle.Attempt(ctx, "a@x.com"))
}

func TestLoginThrottle_ConcurrentAttempts(t *testing.T) {
	_, client := newTestRedis(t)
	throttle := NewLoginThrottle(client, 5, time.Minute, nil)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if throttle.Attempt(context.Background(), "a@x.com") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), admitted.Load())
}

func TestLoginThrottle_Reset(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	throttle := NewLoginThrottle(client, 1, time.Minute, nil)

	require.True(t, throttle.Attempt(ctx, "a@x.com"))
	require.False(t, throttle.Attempt(ctx, "a@x.com"))

	throttle.Reset(ctx, "a@x.com")
	assert.False(t, mr.Exists("login:failures:a@x.com"))
	assert.True(t, throttle.Attempt(ctx, "a@x.com"))
}

func TestLoginThrottle_RedisFailureFailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.SetError("connection refused")

	throttle := NewLoginThrottle(client, 1, time.Minute, nil)
	assert.True(t, throttle.Attempt(context.Background(), "a@x.com"))
	assert.True(t, throttle.Attempt(context.Background(), "a@x.com"))
}

func TestLoginThrottle_Disabled(t *testing.T) {
	var nilThrottle *LoginThrottle
	assert.True(t, nilThrottle.Attempt(context.Background(), "a@x.com"))
	nilThrottle.Reset(context.Background(), "a@x.com")

	mr, client := newTestRedis(t)
	throttle := NewLoginThrottle(client, 0, time.Minute, nil)
	assert.True(t, throttle.Attempt(context.Background(), "a@x.com"))
	assert.False(t, mr.Exists("login:failures:a@x.com"))
}
