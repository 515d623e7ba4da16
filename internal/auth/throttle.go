package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const throttleKeyPrefix = "login:failures:"

// LoginThrottle counts login attempts per e-mail in Redis and refuses
// attempts beyond the limit inside a fixed window. Redis errors fail open.
type LoginThrottle struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
	logger      *zap.Logger
}

// NewLoginThrottle builds a throttle. maxAttempts <= 0 disables it.
func NewLoginThrottle(client redis.Cmdable, maxAttempts int, window time.Duration, logger *zap.Logger) *LoginThrottle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginThrottle{client: client, maxAttempts: maxAttempts, window: window, logger: logger}
}

func (t *LoginThrottle) enabled() bool {
	return t != nil && t.client != nil && t.maxAttempts > 0
}

// Attempt counts one login attempt for email and reports whether it may
// proceed. The count is taken before the password is checked, so concurrent
// attempts cannot all observe a counter below the limit.
func (t *LoginThrottle) Attempt(ctx context.Context, email string) bool {
	if !t.enabled() {
		return true
	}
	key := throttleKeyPrefix + email

	var count *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		// NX keeps the window anchored at the first attempt.
		pipe.ExpireNX(ctx, key, t.window)
		return nil
	})
	if err != nil {
		t.logger.Warn("login throttle increment failed", zap.Error(err))
		return true
	}
	return count.Val() <= int64(t.maxAttempts)
}

// Reset clears the attempt counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) {
	if !t.enabled() {
		return
	}
	if err := t.client.Del(ctx, throttleKeyPrefix+email).Err(); err != nil {
		t.logger.Warn("login throttle reset failed", zap.Error(err))
	}
}
