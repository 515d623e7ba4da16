package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

type recordedDecisions []string

func (r *recordedDecisions) RecordGateDecision(decision string) {
	*r = append(*r, decision)
}

func TestGate_Authenticate(t *testing.T) {
	tm, clock := newTestTokens(t, "secret-a")
	valid, _, err := tm.Issue("user-123")
	require.NoError(t, err)
	expired, _, err := tm.IssueFor("user-123", -time.Minute)
	require.NoError(t, err)

	other, _ := newTestTokens(t, "secret-b")
	forged, _, err := other.Issue("user-123")
	require.NoError(t, err)

	tests := []struct {
		name       string
		md         Metadata
		wantReason RejectReason
	}{
		{name: "valid token", md: Metadata{"Authorization": "Bearer " + valid}},
		{name: "lowercase key and scheme", md: Metadata{"authorization": "bearer " + valid}},
		{name: "missing header", md: Metadata{}, wantReason: RejectMissingCredential},
		{name: "wrong scheme", md: Metadata{"Authorization": "Basic dXNlcjpwYXNz"}, wantReason: RejectMissingCredential},
		{name: "scheme without token", md: Metadata{"Authorization": "Bearer "}, wantReason: RejectMissingCredential},
		{name: "bare token", md: Metadata{"Authorization": valid}, wantReason: RejectMissingCredential},
		{name: "garbage token", md: Metadata{"Authorization": "Bearer garbage"}, wantReason: RejectInvalidCredential},
		{name: "forged token", md: Metadata{"Authorization": "Bearer " + forged}, wantReason: RejectInvalidCredential},
		{name: "expired token", md: Metadata{"Authorization": "Bearer " + expired}, wantReason: RejectInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decisions recordedDecisions
			gate := NewGate(tm, nil, &decisions)

			ctx, err := gate.Authenticate(context.Background(), tt.md)
			if tt.wantReason == "" {
				require.NoError(t, err)
				identity, ok := IdentityFromContext(ctx)
				require.True(t, ok)
				assert.Equal(t, "user-123", identity.Subject)
				assert.True(t, identity.ExpiresAt.After(clock.t))
				assert.Equal(t, recordedDecisions{DecisionAdmitted}, decisions)
				return
			}

			var rejection *RejectionError
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.wantReason, rejection.Reason)
			_, ok := IdentityFromContext(ctx)
			assert.False(t, ok)
			assert.Equal(t, recordedDecisions{string(tt.wantReason)}, decisions)
		})
	}
}

func TestGate_NotConfiguredFailsClosed(t *testing.T) {
	unconfigured := NewTokenManager(nil)
	gate := NewGate(unconfigured, nil, nil)

	_, err := gate.Authenticate(context.Background(), Metadata{"Authorization": "Bearer a.b.c"})
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, RejectNotConfigured, rejection.Reason)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGate(nil, nil, nil).Authenticate(context.Background(), Metadata{})
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, RejectNotConfigured, rejection.Reason)
}

func newGateApp(gate *Gate) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code, "message": de.Message}})
		},
	})
	app.Get("/me", gate.Handle, func(c *fiber.Ctx) error {
		fromLocals, ok := IdentityFromFiber(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		fromCtx, ok := IdentityFromContext(c.UserContext())
		if !ok || fromCtx.Subject != fromLocals.Subject {
			return fiber.ErrInternalServerError
		}
		return c.SendString(fromLocals.Subject)
	})
	return app
}

func TestGate_Handle(t *testing.T) {
	tm, _ := newTestTokens(t, "secret-a")
	token, _, err := tm.Issue("user-123")
	require.NoError(t, err)

	app := newGateApp(NewGate(tm, nil, nil))

	t.Run("admitted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "user-123", string(body))
	})

	t.Run("rejections are indistinguishable", func(t *testing.T) {
		var bodies []string
		for _, header := range []string{"", "Bearer nope", "Bearer " + token + "x"} {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			bodies = append(bodies, string(body))
		}
		assert.Equal(t, bodies[0], bodies[1])
		assert.Equal(t, bodies[1], bodies[2])
	})

	t.Run("unconfigured gate rejects", func(t *testing.T) {
		app := newGateApp(NewGate(NewTokenManager(nil), nil, nil))
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestMetadata_Get(t *testing.T) {
	md := Metadata{"AUTHORIZATION": "Bearer x"}
	assert.Equal(t, "Bearer x", md.Get("Authorization"))
	assert.Equal(t, "", Metadata{}.Get("Authorization"))
}
