package dto

import (
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// NewUserResponse converts an account to its public view.
func NewUserResponse(a *domain.Account) UserResponse {
	return UserResponse{
		ID:        a.ID,
		Email:     a.Email,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
