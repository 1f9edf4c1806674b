package domain

// TokenType differentiates access vs refresh tokens. The string value is
// also the cookie name the token travels under.
type TokenType string

const (
	TokenTypeAccess  TokenType = "accessToken"
	TokenTypeRefresh TokenType = "refreshToken"
)

// Valid reports whether the token type is one of the known kinds.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// CookieName returns the cookie name carrying this token type.
func (t TokenType) CookieName() string {
	return string(t)
}
