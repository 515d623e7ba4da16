package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthHandler exposes registration, login and identity endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return err
	}

	account, err := h.auth.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAccountExists) {
			return apperrors.NewConflict("account already exists", nil)
		}
		return apperrors.NewInternalError(err)
	}

	return c.Status(http.StatusCreated).JSON(dto.NewUserResponse(account))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return apperrors.NewUnauthorized("invalid credentials")
		case errors.Is(err, service.ErrTooManyAttempts):
			return apperrors.NewTooManyRequests("too many login attempts")
		default:
			return apperrors.NewInternalError(err)
		}
	}

	return c.JSON(dto.LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      dto.NewUserResponse(res.Account),
	})
}

// Me handles GET /auth/me. It must sit behind the access gate.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromFiber(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}

	account, err := h.auth.Me(c.UserContext(), identity.Subject)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return apperrors.NewUnauthorized("unauthorized")
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.NewUserResponse(account))
}

func validateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	if !strings.Contains(email, "@") {
		return apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	return nil
}
