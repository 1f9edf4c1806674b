package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventUserRegistered EventType = "user_registered"
	EventAccountLocked  EventType = "account_locked"
	EventPasswordReset  EventType = "password_reset_requested"
)

// Event represents a security or account event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Username  string      `json:"username"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload carries context for a failed authentication attempt.
type LoginFailedPayload struct {
	RemoteIP string `json:"remote_ip,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// UserRegisteredPayload carries the verification link for a new account.
type UserRegisteredPayload struct {
	Email            string `json:"email"`
	VerificationLink string `json:"verification_link"`
}

// PasswordResetPayload carries the reset link for an account.
type PasswordResetPayload struct {
	Email     string `json:"email"`
	ResetLink string `json:"reset_link"`
}
