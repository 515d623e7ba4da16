package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthorizationKey is the metadata key carrying the bearer credential.
const AuthorizationKey = "Authorization"

const (
	bearerScheme = "Bearer"
	identityKey  = "auth_identity"
)

// RejectReason classifies why the gate refused an operation. It is for logs
// and metrics only; callers always see the same unauthorized response.
type RejectReason string

const (
	RejectMissingCredential RejectReason = "missing_credential"
	RejectInvalidCredential RejectReason = "invalid_credential"
	RejectNotConfigured     RejectReason = "not_configured"
)

// DecisionAdmitted is reported to the DecisionRecorder for admitted calls.
const DecisionAdmitted = "admitted"

// RejectionError is returned by Gate.Authenticate.
type RejectionError struct {
	Reason RejectReason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("rejected (%s)", e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Metadata is the header-like map the gate reads credentials from.
type Metadata map[string]string

// Get returns the value for key, matching case-insensitively.
func (m Metadata) Get(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Verifier is the token side of the gate.
type Verifier interface {
	Configured() bool
	Verify(token string) (Identity, error)
}

// DecisionRecorder observes gate outcomes.
type DecisionRecorder interface {
	RecordGateDecision(decision string)
}

// Gate validates bearer tokens on protected operations. It keeps no state
// between calls.
type Gate struct {
	tokens   Verifier
	logger   *zap.Logger
	recorder DecisionRecorder
}

// NewGate constructs the gate. recorder may be nil.
func NewGate(tokens Verifier, logger *zap.Logger, recorder DecisionRecorder) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{tokens: tokens, logger: logger, recorder: recorder}
}

// Authenticate extracts and verifies the bearer token in md. On success the
// returned context carries the caller's Identity.
func (g *Gate) Authenticate(ctx context.Context, md Metadata) (context.Context, error) {
	if g.tokens == nil || !g.tokens.Configured() {
		return ctx, g.reject(RejectNotConfigured, ErrNotConfigured)
	}

	token, ok := extractBearer(md.Get(AuthorizationKey))
	if !ok {
		return ctx, g.reject(RejectMissingCredential, nil)
	}

	identity, err := g.tokens.Verify(token)
	if err != nil {
		return ctx, g.reject(RejectInvalidCredential, err)
	}

	g.record(DecisionAdmitted)
	return WithIdentity(ctx, identity), nil
}

// Handle enforces authentication for protected routes.
func (g *Gate) Handle(c *fiber.Ctx) error {
	ctx, err := g.Authenticate(c.UserContext(), Metadata{AuthorizationKey: c.Get(fiber.HeaderAuthorization)})
	if err != nil {
		return apperrors.NewUnauthorized("unauthorized")
	}

	identity, _ := IdentityFromContext(ctx)
	c.SetUserContext(ctx)
	c.Locals(identityKey, identity)
	return c.Next()
}

func (g *Gate) reject(reason RejectReason, cause error) error {
	g.record(string(reason))
	if reason == RejectNotConfigured {
		g.logger.Error("access gate has no signing secret; refusing request")
	} else {
		g.logger.Debug("access gate rejected request", zap.String("reason", string(reason)), zap.Error(cause))
	}
	return &RejectionError{Reason: reason, Err: cause}
}

func (g *Gate) record(decision string) {
	if g.recorder != nil {
		g.recorder.RecordGateDecision(decision)
	}
}

func extractBearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

type identityCtxKey struct{}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFromContext retrieves the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(Identity)
	return identity, ok
}

// IdentityFromFiber retrieves the identity stored in fiber locals.
func IdentityFromFiber(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(identityKey).(Identity)
	return identity, ok
}
