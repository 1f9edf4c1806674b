package service

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/crypto"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	"github.com/spec-kit/user-service/pkg/util"
)

// LoginResult carries the outcome of a successful authentication. The
// access token is encrypted for transport; RefreshCookie is nil when the
// client presented a refresh token that is still valid.
type LoginResult struct {
	User          *domain.User
	AccessToken   string
	ExpiresAt     time.Time
	RefreshCookie *fiber.Cookie
}

// RefreshResult carries a re-issued access token.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService composes the cipher, token and cookie layers into the
// login, refresh and logout flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	cipher     *crypto.Cipher
	cookies    *auth.CookieBuilder
	dispatcher events.Dispatcher
	logger     *zap.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Cipher     *crypto.Cipher
	Cookies    *auth.CookieBuilder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.SecurityConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		cipher:     deps.Cipher,
		cookies:    deps.Cookies,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		now:        time.Now,
	}
}

// Login authenticates the credentials. Every failure path publishes a
// login-failed event and returns the same generic unauthorized error so
// callers cannot distinguish unknown users from wrong passwords or
// locked accounts. existingRefreshCookie is the raw (encrypted) refresh
// token cookie value from the request, empty when absent.
func (s *AuthService) Login(ctx context.Context, username, password, existingRefreshCookie string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, util.NewValidationError("username and password required", nil)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.publishFailure(ctx, username, "unknown user")
		return nil, util.NewUnauthorized("invalid credentials")
	}
	if !user.Active() {
		s.publishFailure(ctx, username, "account inactive")
		return nil, util.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.publishFailure(ctx, username, "bad password")
		return nil, util.NewUnauthorized("invalid credentials")
	}

	s.publish(ctx, events.EventLoginSucceeded, username, nil)

	result := &LoginResult{User: user}

	if !s.refreshTokenValid(existingRefreshCookie) {
		cookie, err := s.issueRefreshCookie(username)
		if err != nil {
			return nil, util.NewInternalError(err)
		}
		result.RefreshCookie = cookie
	}

	accessToken, expiresAt, err := s.issueAccessToken(username)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	result.AccessToken = accessToken
	result.ExpiresAt = expiresAt

	return result, nil
}

// Refresh validates the refresh cookie and issues a new access token.
// The refresh token itself is not rotated. An invalid cookie surfaces as
// an explicit invalid-token error; the caller must re-authenticate.
func (s *AuthService) Refresh(ctx context.Context, refreshCookie string) (*RefreshResult, error) {
	token, err := s.cipher.Decrypt(refreshCookie)
	if err != nil || token == "" || !s.tokens.Verify(token) {
		return nil, util.NewInvalidToken()
	}

	username, err := s.tokens.Subject(token)
	if err != nil {
		return nil, util.NewInvalidToken()
	}

	active, err := s.users.ExistsAndEnabled(ctx, username)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	if !active {
		return nil, util.NewUnauthorized("account unavailable")
	}

	accessToken, expiresAt, err := s.issueAccessToken(username)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return &RefreshResult{AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

// Logout produces the deletion cookie for the refresh token. Idempotent;
// there is no server-side session state to clear beyond the cookie.
func (s *AuthService) Logout() (*fiber.Cookie, error) {
	return s.cookies.BuildDeletion(domain.TokenTypeRefresh)
}

func (s *AuthService) issueAccessToken(username string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.accessTTL)
	token, err := s.tokens.IssueWithExpiry(username, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	encrypted, err := s.cipher.Encrypt(token)
	if err != nil {
		return "", time.Time{}, err
	}
	return encrypted, expiresAt, nil
}

func (s *AuthService) issueRefreshCookie(username string) (*fiber.Cookie, error) {
	token, err := s.tokens.IssueWithExpiry(username, s.now().Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}
	encrypted, err := s.cipher.Encrypt(token)
	if err != nil {
		return nil, err
	}
	return s.cookies.BuildForTokenWithDuration(domain.TokenTypeRefresh, encrypted, s.refreshTTL)
}

func (s *AuthService) refreshTokenValid(encrypted string) bool {
	if encrypted == "" {
		return false
	}
	token, err := s.cipher.Decrypt(encrypted)
	if err != nil || token == "" {
		return false
	}
	return s.tokens.Verify(token)
}

func (s *AuthService) publishFailure(ctx context.Context, username, reason string) {
	s.publish(ctx, events.EventLoginFailed, username, events.LoginFailedPayload{Reason: reason})
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, username string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		Username:  username,
		Timestamp: s.now(),
		Payload:   payload,
	})
}
