package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/crypto"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	"github.com/spec-kit/user-service/pkg/util"
)

// UserService coordinates registration, verification and account
// maintenance flows around the user store.
type UserService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	tokens     *auth.TokenManager
	cipher     *crypto.Cipher
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	baseURL    string
}

// UserDependencies encapsulates collaborator requirements for the user service.
type UserDependencies struct {
	UserRepo  repository.UserRepository
	ResetRepo repository.PasswordResetRepository
	Tokens    *auth.TokenManager
	Cipher    *crypto.Cipher

	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(cfg *config.Config, deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		resets:     deps.ResetRepo,
		tokens:     deps.Tokens,
		cipher:     deps.Cipher,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		bcryptCost: cfg.Security.BcryptCost,
		resetTTL:   cfg.Security.PasswordResetTTL(),
		baseURL:    cfg.Notification.BaseURL,
	}
}

// Register creates a new, disabled account and publishes the event
// carrying its email verification link.
func (s *UserService) Register(ctx context.Context, username, email, name, password string) (*domain.User, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, util.NewConflict("username already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewInternalError(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, util.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Enabled:      false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, util.NewInternalError(err)
	}

	link, err := s.verificationLink(username)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publish(ctx, events.EventUserRegistered, username, events.UserRegisteredPayload{
		Email:            email,
		VerificationLink: link,
	})

	return user, nil
}

// VerifyEmail decrypts and verifies the emailed token and enables the
// account it names. The token arrives already percent-decoded: the
// link embeds it with Encode, and the query parser undoes that.
func (s *UserService) VerifyEmail(ctx context.Context, encryptedToken string) error {
	token, err := s.cipher.Decrypt(encryptedToken)
	if err != nil || token == "" || !s.tokens.Verify(token) {
		return util.NewInvalidToken()
	}
	username, err := s.tokens.Subject(token)
	if err != nil {
		return util.NewInvalidToken()
	}

	if err := s.users.SetEnabled(ctx, username, true); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("user", nil)
		}
		return util.NewInternalError(err)
	}
	return nil
}

// GetByUsername loads a user profile.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("user", nil)
		}
		return nil, util.NewInternalError(err)
	}
	return user, nil
}

// UpdateProfile changes the mutable profile fields of an account.
func (s *UserService) UpdateProfile(ctx context.Context, username, email, name string) (*domain.User, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if email != "" {
		user.Email = email
	}
	if name != "" {
		user.Name = name
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, util.NewInternalError(err)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return util.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return util.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return util.NewInternalError(err)
	}
	return nil
}

// RequestPasswordReset stores a reset token and publishes the event
// carrying the reset link. Unknown emails are a silent no-op so the
// response never reveals whether an address is registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("password reset for unknown email", zap.String("email", email))
			return nil
		}
		return util.NewInternalError(err)
	}

	token := &repository.PasswordResetToken{
		Username:  user.Username,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return util.NewInternalError(err)
	}

	link, err := s.resetLink(token.Token)
	if err != nil {
		return util.NewInternalError(err)
	}
	s.publish(ctx, events.EventPasswordReset, user.Username, events.PasswordResetPayload{
		Email:     user.Email,
		ResetLink: link,
	})
	return nil
}

// ConfirmPasswordReset validates the emailed token and updates the password.
func (s *UserService) ConfirmPasswordReset(ctx context.Context, encryptedToken, newPassword string) error {
	tokenStr, err := s.cipher.Decrypt(encryptedToken)
	if err != nil || tokenStr == "" {
		return util.NewInvalidToken()
	}

	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewInvalidToken()
		}
		return util.NewInternalError(err)
	}
	if token.UsedAt != nil || time.Now().After(token.ExpiresAt) {
		return util.NewInvalidToken()
	}

	user, err := s.GetByUsername(ctx, token.Username)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return util.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return util.NewInternalError(err)
	}

	return s.resets.MarkUsed(ctx, token.ID)
}

// Unlock is the explicit administrative exit from the one-way lockout:
// it clears the locked flag and zeroes the failure counter.
func (s *UserService) Unlock(ctx context.Context, username string) error {
	if err := s.users.ResetFailedAttempts(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("user", nil)
		}
		return util.NewInternalError(err)
	}
	return nil
}

// Lock is the administrative counterpart of Unlock. The account keeps
// its failure counter; only the locked flag flips.
func (s *UserService) Lock(ctx context.Context, username string) error {
	if err := s.users.SetLocked(ctx, username, true); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("user", nil)
		}
		return util.NewInternalError(err)
	}
	s.publish(ctx, events.EventAccountLocked, username, nil)
	return nil
}

// verificationLink builds the emailed link: a signed token, encrypted
// for transport, then percent-encoded for URL embedding.
func (s *UserService) verificationLink(username string) (string, error) {
	token, err := s.tokens.Issue(username)
	if err != nil {
		return "", err
	}
	encrypted, err := s.cipher.Encrypt(token)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/v1/users/verify?token=%s", s.baseURL, s.cipher.Encode(encrypted)), nil
}

// resetLink targets the password-reset page rather than the API: the
// page collects the new password and submits it together with the token
// to POST /api/v1/users/password/reset/confirm.
func (s *UserService) resetLink(token string) (string, error) {
	encrypted, err := s.cipher.Encrypt(token)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/password/reset?token=%s", s.baseURL, s.cipher.Encode(encrypted)), nil
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, username string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
