package domain

import "time"

// Role enumerates account authority levels.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the domain model for accounts managed by this service.
//
// FailedLoginAttempts and Locked belong to the brute-force protection
// state machine: the counter only resets on a verified successful
// authentication and the locked flag is one-way until an explicit unlock.
type User struct {
	ID                  string
	Username            string
	Email               string
	Name                string
	PasswordHash        string
	Role                Role
	Enabled             bool
	Locked              bool
	FailedLoginAttempts int
	LastSuccessfulLogin *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u != nil && u.Enabled && !u.Locked
}

// IsAdmin reports whether the account carries administrative authority.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
