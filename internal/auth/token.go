package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-service/internal/config"
)

// Identity is the verified content of a token.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenManager handles issuing and validating JWT tokens. It is immutable
// after construction and safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// NewTokenManager builds a new manager. A nil cfg yields a manager whose
// every operation fails with ErrNotConfigured.
func NewTokenManager(cfg *config.JWTConfig, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{now: time.Now, ttl: cfg.TTL()}
	if cfg != nil && len(cfg.Secret) > 0 {
		tm.secret = append([]byte(nil), cfg.Secret...)
	}
	for _, opt := range opts {
		opt(tm)
	}
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return tm.now() }),
	)
	return tm
}

// Configured reports whether a signing secret is present.
func (tm *TokenManager) Configured() bool {
	return tm != nil && len(tm.secret) > 0
}

// TTL returns the default token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for subject using the configured lifetime.
func (tm *TokenManager) Issue(subject string) (string, time.Time, error) {
	return tm.IssueFor(subject, tm.TTL())
}

// IssueFor signs a token for subject that expires ttl from now. Expiry is
// kept at second granularity.
func (tm *TokenManager) IssueFor(subject string, ttl time.Duration) (string, time.Time, error) {
	if !tm.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}
	if subject == "" {
		return "", time.Time{}, ErrEmptySubject
	}

	expiresAt := jwt.NewNumericDate(tm.now().Add(ttl))
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: expiresAt,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt.Time, nil
}

// Verify checks the MAC over the raw signed segments, then decodes and
// validates the claims. The returned error wraps exactly one of
// ErrNotConfigured, ErrMalformedToken, ErrBadSignature or ErrTokenExpired.
func (tm *TokenManager) Verify(raw string) (Identity, error) {
	if !tm.Configured() {
		return Identity{}, ErrNotConfigured
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Identity{}, ErrMalformedToken
	}

	sig, err := tm.parser.DecodeSegment(parts[2])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, tm.secret); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := tm.parser.ParseWithClaims(raw, claims, tm.keyFunc); err != nil {
		return Identity{}, classify(err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Identity{}, ErrMalformedToken
	}

	return Identity{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return tm.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
