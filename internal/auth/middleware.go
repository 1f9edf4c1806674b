package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/crypto"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/repository"
)

const principalKey = "auth_principal"

// Middleware resolves the authenticated principal for each request. It
// never rejects: a missing, undecryptable or invalid token simply leaves
// the request unauthenticated and enforcement happens downstream.
type Middleware struct {
	tokens *TokenManager
	cipher *crypto.Cipher
	users  repository.UserRepository
	logger *zap.Logger
}

// NewMiddleware constructs the per-request authentication filter.
func NewMiddleware(tokens *TokenManager, cipher *crypto.Cipher, users repository.UserRepository, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, cipher: cipher, users: users, logger: logger}
}

// Handle extracts the encrypted token from the header or cookie, decrypts
// and verifies it, and attaches the resolved user to the request scope.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	raw := m.tokens.Extract(c, false)
	if raw == "" {
		raw = m.tokens.Extract(c, true)
	}
	if raw == "" {
		return c.Next()
	}

	token, err := m.cipher.Decrypt(raw)
	if err != nil || token == "" {
		// Undecryptable credential is treated as no credential.
		return c.Next()
	}

	if !m.tokens.Verify(token) {
		return c.Next()
	}

	username, err := m.tokens.Subject(token)
	if err != nil {
		return c.Next()
	}

	user, err := m.users.GetByUsername(c.Context(), username)
	if err != nil {
		m.logger.Debug("principal lookup failed", zap.String("username", username), zap.Error(err))
		return c.Next()
	}
	if user.Active() {
		c.Locals(principalKey, user)
	}

	return c.Next()
}

// PrincipalFromContext retrieves the authenticated user.
func PrincipalFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}

// RequireAuthenticated rejects requests without a resolved principal.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
