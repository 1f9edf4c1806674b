package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/repository"
)

// memUserRepo is an in-memory stand-in for the Postgres user store. Its
// increment mirrors the single-statement UPDATE semantics: counting stops
// at the threshold and exceeding it flips the locked flag instead.
type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) add(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	clone := *user
	if clone.ID == "" {
		clone.ID = strconv.Itoa(r.seq)
	}
	r.users[clone.Username] = &clone
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.add(user)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.Username]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Email = user.Email
	stored.Name = user.Name
	stored.PasswordHash = user.PasswordHash
	stored.Enabled = user.Enabled
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) IncrementFailedAttempts(_ context.Context, username string, threshold int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok || user.Locked {
		return false, pgx.ErrNoRows
	}
	if user.FailedLoginAttempts+1 > threshold {
		user.Locked = true
	} else {
		user.FailedLoginAttempts++
	}
	return user.Locked, nil
}

func (r *memUserRepo) ResetFailedAttempts(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	user.FailedLoginAttempts = 0
	user.Locked = false
	user.LastSuccessfulLogin = &now
	return nil
}

func (r *memUserRepo) SetLocked(_ context.Context, username string, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Locked = locked
	return nil
}

func (r *memUserRepo) SetEnabled(_ context.Context, username string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Enabled = enabled
	return nil
}

func (r *memUserRepo) ExistsAndEnabled(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	return ok && user.Enabled && !user.Locked, nil
}

func (r *memUserRepo) HasExcessFailedAttempts(_ context.Context, username string, threshold int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	return ok && user.FailedLoginAttempts > threshold, nil
}

// memResetRepo is an in-memory password reset token store.
type memResetRepo struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]*repository.PasswordResetToken
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{tokens: make(map[string]*repository.PasswordResetToken)}
}

func (r *memResetRepo) Create(_ context.Context, token *repository.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	token.ID = strconv.Itoa(r.seq)
	token.CreatedAt = time.Now()
	clone := *token
	r.tokens[token.Token] = &clone
	return nil
}

func (r *memResetRepo) GetByToken(_ context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *token
	return &clone, nil
}

func (r *memResetRepo) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.ID == id {
			now := time.Now()
			token.UsedAt = &now
			return nil
		}
	}
	return nil
}

var (
	_ repository.UserRepository          = (*memUserRepo)(nil)
	_ repository.PasswordResetRepository = (*memResetRepo)(nil)
)
