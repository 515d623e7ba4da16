package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// bcrypt only reads the first 72 bytes of its input.
const bcryptInputLimit = 72

// Hasher hashes and verifies plaintext passwords.
type Hasher interface {
	// Hash returns a self-describing salted digest of plaintext.
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports whether plaintext matches digest. A mismatch or a
	// malformed digest yields (false, nil); the error is only set when ctx
	// ends first.
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// BcryptHasher implements Hasher with bcrypt. Work runs on a bounded pool so
// a burst of logins cannot saturate every CPU.
type BcryptHasher struct {
	cost  int
	slots *semaphore.Weighted
}

// NewBcryptHasher builds a hasher with the given cost and pool width.
func NewBcryptHasher(cost, workers int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{cost: cost, slots: semaphore.NewWeighted(int64(workers))}
}

type hashResult struct {
	digest []byte
	err    error
}

// Hash generates a fresh salt and returns the bcrypt digest of plaintext.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	res, err := runOnPool(ctx, h.slots, func() hashResult {
		digest, err := bcrypt.GenerateFromPassword(prepare(plaintext), h.cost)
		return hashResult{digest: digest, err: err}
	})
	if err != nil {
		return "", err
	}
	if res.err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, res.err)
	}
	return string(res.digest), nil
}

// Verify compares plaintext against digest in constant time.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	return runOnPool(ctx, h.slots, func() bool {
		return bcrypt.CompareHashAndPassword([]byte(digest), prepare(plaintext)) == nil
	})
}

// Cost reports the work factor used for new digests.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// runOnPool runs fn once a slot is free. If ctx ends first the caller gets
// ctx.Err() and fn finishes in the background; it holds no shared state.
func runOnPool[T any](ctx context.Context, slots *semaphore.Weighted, fn func() T) (T, error) {
	var zero T
	if err := slots.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan T, 1)
	go func() {
		defer slots.Release(1)
		done <- fn()
	}()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// prepare maps secrets longer than bcrypt's window to a fixed-width SHA-256
// encoding so every byte of the secret contributes.
func prepare(plaintext string) []byte {
	if len(plaintext) <= bcryptInputLimit {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
