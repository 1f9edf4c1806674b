package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
)

const defaultCookieDuration = 7 * 24 * time.Hour

var (
	// ErrBlankCookieName is a caller error for cookie construction.
	ErrBlankCookieName = errors.New("cookie: name cannot be blank")
	// ErrBlankToken is a caller error: token cookies need a token.
	ErrBlankToken = errors.New("cookie: token cannot be blank")
	// ErrUnknownTokenType is a caller error for unrecognized token kinds.
	ErrUnknownTokenType = errors.New("cookie: unknown token type")
)

// CookieBuilder constructs the secure cookies tokens travel in. Every
// cookie is HttpOnly with SameSite=Strict and Path=/; the Secure flag
// follows the environment, not the request.
type CookieBuilder struct {
	secure bool
}

// NewCookieBuilder derives cookie policy from the runtime environment.
func NewCookieBuilder(env string) *CookieBuilder {
	return &CookieBuilder{secure: env == config.EnvProduction}
}

// Build creates a cookie with the fixed transport policy applied.
func (b *CookieBuilder) Build(name, value string, maxAge time.Duration) (*fiber.Cookie, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankCookieName
	}

	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HTTPOnly: true,
		Secure:   b.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	}, nil
}

// BuildForToken wraps a token in a cookie with the default 7 day lifetime.
func (b *CookieBuilder) BuildForToken(tokenType domain.TokenType, token string) (*fiber.Cookie, error) {
	return b.BuildForTokenWithDuration(tokenType, token, defaultCookieDuration)
}

// BuildForTokenWithDuration wraps a token in a cookie with an explicit lifetime.
func (b *CookieBuilder) BuildForTokenWithDuration(tokenType domain.TokenType, token string, maxAge time.Duration) (*fiber.Cookie, error) {
	if !tokenType.Valid() {
		return nil, ErrUnknownTokenType
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrBlankToken
	}
	if maxAge <= 0 {
		maxAge = defaultCookieDuration
	}
	return b.Build(tokenType.CookieName(), token, maxAge)
}

// BuildDeletion expresses cookie deletion as an explicit overwrite with
// an empty value and Max-Age=0, the conventional HTTP removal form.
func (b *CookieBuilder) BuildDeletion(tokenType domain.TokenType) (*fiber.Cookie, error) {
	if !tokenType.Valid() {
		return nil, ErrUnknownTokenType
	}
	cookie, err := b.Build(tokenType.CookieName(), "", 0)
	if err != nil {
		return nil, err
	}
	// fasthttp omits Max-Age=0 when serializing, so pin the epoch Expires
	// to make the overwrite take effect immediately.
	cookie.Expires = time.Unix(0, 0)
	return cookie, nil
}

// HeaderValue serializes a cookie into a Set-Cookie header value for
// callers outside the fiber response path.
func HeaderValue(cookie *fiber.Cookie) string {
	var sb strings.Builder
	sb.WriteString(cookie.Name)
	sb.WriteByte('=')
	sb.WriteString(cookie.Value)
	sb.WriteString("; Path=")
	sb.WriteString(cookie.Path)
	sb.WriteString("; Max-Age=")
	sb.WriteString(strconv.Itoa(cookie.MaxAge))
	if cookie.HTTPOnly {
		sb.WriteString("; HttpOnly")
	}
	if cookie.Secure {
		sb.WriteString("; Secure")
	}
	if cookie.SameSite != "" {
		sb.WriteString("; SameSite=")
		sb.WriteString(cookie.SameSite)
	}
	return sb.String()
}
