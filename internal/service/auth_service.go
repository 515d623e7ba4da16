package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
)

var (
	// ErrAccountExists is returned when registering an e-mail that is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials covers both unknown e-mails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts is returned while login is throttled for an e-mail.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrAccountNotFound is returned when a verified subject has no account.
	ErrAccountNotFound = errors.New("account not found")
)

// decoyPassword is hashed on first use and verified against when the e-mail
// is unknown, so both login failure paths pay one bcrypt comparison.
const decoyPassword = "decoy-password-for-unknown-accounts"

// TokenIssuer mints tokens for authenticated accounts.
type TokenIssuer interface {
	Configured() bool
	Issue(subject string) (string, time.Time, error)
}

// LoginLimiter throttles repeated login attempts. Attempt counts the attempt
// before the password is checked.
type LoginLimiter interface {
	Attempt(ctx context.Context, email string) bool
	Reset(ctx context.Context, email string)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	accounts repository.AccountRepository
	hasher   auth.Hasher
	tokens   TokenIssuer
	throttle LoginLimiter
	events   events.Dispatcher
	logger   *zap.Logger

	decoyMu sync.Mutex
	decoy   string
}

// AuthDependencies encapsulates collaborators for the auth service.
// Throttle, Events and Logger are optional.
type AuthDependencies struct {
	Accounts repository.AccountRepository
	Hasher   auth.Hasher
	Tokens   TokenIssuer
	Throttle LoginLimiter
	Events   events.Dispatcher
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		throttle: deps.Throttle,
		events:   deps.Events,
		logger:   logger,
	}
}

// NormalizeEmail trims and lower-cases an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with a hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	email = NormalizeEmail(email)

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, email, digest)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.EventAccountRegistered, AccountID: account.ID, Email: email})
	return account, nil
}

// Login verifies the password and issues a token on success.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if s.tokens == nil || !s.tokens.Configured() {
		return nil, auth.ErrNotConfigured
	}

	email = NormalizeEmail(email)
	if s.throttle != nil && !s.throttle.Attempt(ctx, email) {
		s.publish(ctx, events.Event{Type: events.EventLoginThrottled, Email: email})
		return nil, ErrTooManyAttempts
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if account == nil {
		decoy, err := s.decoyDigest(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := s.hasher.Verify(ctx, password, decoy); err != nil {
			return nil, err
		}
		s.loginFailed(ctx, email, "unknown_account")
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, password, account.PasswordDigest)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.loginFailed(ctx, email, "bad_password")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if s.throttle != nil {
		s.throttle.Reset(ctx, email)
	}
	s.publish(ctx, events.Event{Type: events.EventLoginSucceeded, AccountID: account.ID, Email: email})

	return &LoginResult{Account: account, Token: token, ExpiresAt: expiresAt}, nil
}

// Me resolves the account behind a verified identity.
func (s *AuthService) Me(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

// PrepareDecoy computes the digest used for unknown e-mails ahead of the
// first login.
func (s *AuthService) PrepareDecoy(ctx context.Context) error {
	_, err := s.decoyDigest(ctx)
	return err
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.publish(ctx, events.Event{Type: events.EventLoginFailed, Email: email, Reason: reason})
}

// decoyDigest returns the cached decoy digest, hashing it if no earlier call
// succeeded. A failed hash is not cached.
func (s *AuthService) decoyDigest(ctx context.Context) (string, error) {
	s.decoyMu.Lock()
	defer s.decoyMu.Unlock()

	if s.decoy != "" {
		return s.decoy, nil
	}
	digest, err := s.hasher.Hash(ctx, decoyPassword)
	if err != nil {
		return "", fmt.Errorf("prepare decoy digest: %w", err)
	}
	s.decoy = digest
	return digest, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
