package models

import "time"

// TokenPurpose scopes a one-time token to a single flow.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify_email"
	PurposeChangeEmail   TokenPurpose = "change_email"
	PurposeResetPassword TokenPurpose = "reset_password"
)

// OneTimeToken backs email verification, email change and password reset
// links. Email is the address the token is bound to, empty for resets.
type OneTimeToken struct {
	TokenHash string
	UserID    string
	Purpose   TokenPurpose
	Email     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// LoginAttempt is the server-side lockout counter for one normalized email.
type LoginAttempt struct {
	Key         string
	Failures    int
	LockedUntil *time.Time
	UpdatedAt   time.Time
}

// LockedAt reports whether the counter is in cool-down at now.
func (a *LoginAttempt) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
