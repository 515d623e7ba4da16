// Package repositorytest provides in-memory repositories for tests.
package repositorytest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
)

// MemoryAccounts is a concurrency-safe AccountRepository backed by maps.
type MemoryAccounts struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byEmail map[string]string
}

var _ repository.AccountRepository = (*MemoryAccounts)(nil)

// NewMemoryAccounts returns an empty repository.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	account := *m.byID[id]
	return &account, nil
}

func (m *MemoryAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	account := *stored
	return &account, nil
}

func (m *MemoryAccounts) Create(_ context.Context, email, passwordDigest string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, repository.ErrDuplicateEmail
	}
	account := &domain.Account{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: passwordDigest,
		CreatedAt:      time.Now().UTC(),
	}
	m.byID[account.ID] = account
	m.byEmail[email] = account.ID

	out := *account
	return &out, nil
}

// Len reports how many accounts are stored.
func (m *MemoryAccounts) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
