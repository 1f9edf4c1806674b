package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/user-service/internal/domain"
)

const (
	bearerPrefix         = "Bearer "
	defaultTokenValidity = 24 * time.Hour
)

// ErrBlankSubject is a caller error: tokens are never issued for an
// empty subject.
var ErrBlankSubject = errors.New("token: subject cannot be blank")

// TokenManager issues and validates signed identity tokens. Immutable
// after construction and safe for unrestricted concurrent use.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for the subject with the default one day expiry.
func (tm *TokenManager) Issue(subject string) (string, error) {
	return tm.IssueWithExpiry(subject, tm.now().Add(defaultTokenValidity))
}

// IssueWithExpiry signs a token for the subject expiring at the given time.
func (tm *TokenManager) IssueWithExpiry(subject string, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrBlankSubject
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(tm.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(tm.secret)
}

// Verify reports whether the token is valid. Bad signatures, malformed
// structure, expiry, unexpected algorithms and empty input all collapse
// to false; validation is a boolean decision point, not an error path.
func (tm *TokenManager) Verify(token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	parsed, err := tm.parse(token)
	return err == nil && parsed.Valid
}

// Subject returns the sub claim of a token.
func (tm *TokenManager) Subject(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrBlankSubject
	}
	parsed, err := tm.parse(token)
	if err != nil {
		return "", err
	}
	return parsed.Claims.GetSubject()
}

// Extract reads the raw token from the request: the Authorization bearer
// header, or the access token cookie when fromCookie is set. Returns an
// empty string when absent; unauthenticated requests are normal.
func (tm *TokenManager) Extract(c *fiber.Ctx, fromCookie bool) string {
	if fromCookie {
		return c.Cookies(domain.TokenTypeAccess.CookieName())
	}

	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}
	return ""
}

func (tm *TokenManager) parse(token string) (*jwt.Token, error) {
	return jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS512 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
}
