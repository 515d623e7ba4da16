package auth

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/config"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTokens(t *testing.T, secret string) (*TokenManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	tm := NewTokenManager(&config.JWTConfig{Secret: []byte(secret), TTLMinutes: 60}, WithClock(clock.Now))
	return tm, clock
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm, clock := newTestTokens(t, "secret-a")

	token, expiresAt, err := tm.Issue("user-123")
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), expiresAt)
	assert.Len(t, strings.Split(token, "."), 3)

	identity, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.Subject)
	assert.True(t, identity.ExpiresAt.Equal(expiresAt))
}

func TestTokenManager_ExpiryBoundary(t *testing.T) {
	tm, clock := newTestTokens(t, "secret-a")
	issuedAt := clock.t

	token, _, err := tm.IssueFor("user-123", 10*time.Minute)
	require.NoError(t, err)

	clock.t = issuedAt.Add(10*time.Minute - time.Second)
	_, err = tm.Verify(token)
	require.NoError(t, err, "one second before expiry is still valid")

	clock.t = issuedAt.Add(10 * time.Minute)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired, "expiry instant itself is expired")

	clock.t = issuedAt.Add(time.Hour)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrBadSignature)
}

func TestTokenManager_TamperedTokenFailsSignature(t *testing.T) {
	tm, _ := newTestTokens(t, "secret-a")

	token, _, err := tm.Issue("user-123")
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		replacement := base64URLAlphabet[(strings.IndexByte(base64URLAlphabet, token[i])+1)%len(base64URLAlphabet)]
		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := tm.Verify(tampered)
		require.ErrorIsf(t, err, ErrBadSignature, "byte %d changed", i)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuer, _ := newTestTokens(t, "secret-a")
	verifier, _ := newTestTokens(t, "secret-b")

	token, _, err := issuer.Issue("user-123")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestTokenManager_ForgedExpiredTokenIsBadSignature(t *testing.T) {
	issuer, clock := newTestTokens(t, "secret-a")
	verifier, _ := newTestTokens(t, "secret-b")

	token, _, err := issuer.IssueFor("user-123", time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour)
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	tm, clock := newTestTokens(t, "secret-a")
	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}

	t.Run("HS512 signed with the same secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret-a"))
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("alg none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("HS256 MAC under a header declaring HS384", func(t *testing.T) {
		header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS384","typ":"JWT"}`))
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"user-123","exp":` +
			strconv.FormatInt(clock.t.Add(time.Hour).Unix(), 10) + `}`))
		sig, err := jwt.SigningMethodHS256.Sign(header+"."+payload, []byte("secret-a"))
		require.NoError(t, err)
		token := header + "." + payload + "." + base64.RawURLEncoding.EncodeToString(sig)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, ErrBadSignature)
	})
}

func TestTokenManager_Malformed(t *testing.T) {
	tm, _ := newTestTokens(t, "secret-a")

	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", ".payload.sig", "header..sig"} {
		_, err := tm.Verify(raw)
		assert.ErrorIsf(t, err, ErrMalformedToken, "input %q", raw)
	}
}

func TestTokenManager_MissingSubjectIsMalformed(t *testing.T) {
	tm, clock := newTestTokens(t, "secret-a")
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret-a"))
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenManager_MissingExpiryIsMalformed(t *testing.T) {
	tm, _ := newTestTokens(t, "secret-a")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-123"}).
		SignedString([]byte("secret-a"))
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenManager_NotConfigured(t *testing.T) {
	tm := NewTokenManager(nil)
	assert.False(t, tm.Configured())

	_, _, err := tm.Issue("user-123")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = tm.Verify("a.b.c")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTokenManager_EmptySubject(t *testing.T) {
	tm, _ := newTestTokens(t, "secret-a")
	_, _, err := tm.Issue("")
	assert.ErrorIs(t, err, ErrEmptySubject)
}
