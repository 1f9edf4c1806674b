package dto

import "time"

// LoginRequest payload for authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// JwtResponse carries the encrypted access token back to the client.
type JwtResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"type"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// LogoutResponse is the fixed payload returned by logout.
type LogoutResponse struct {
	Status string `json:"status"`
}
