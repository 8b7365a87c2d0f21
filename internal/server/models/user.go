// Package models defines server-side records persisted in the credential store.
package models

import (
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
)

// User is an account. Email is nil for wallet or social accounts that never
// shared one, and PasswordHash is empty for accounts without a local password.
type User struct {
	ID               string
	Email            *string
	PendingEmail     *string
	PasswordHash     string
	Role             identity.Role
	EmailVerified    bool
	TwoFactorEnabled bool
	TOTPSecret       []byte // AES-GCM sealed, nil when TOTP is not set up
	AuthProvider     identity.AuthProvider
	ProviderSubject  string // account id at a social provider
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmailAddress returns the live email or "".
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// HasEmail reports whether the account has a live email address.
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}

// Clone returns a deep copy, so callers can mutate without aliasing stored state.
func (u *User) Clone() *User {
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	if u.PendingEmail != nil {
		e := *u.PendingEmail
		c.PendingEmail = &e
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	if u.TOTPSecret != nil {
		c.TOTPSecret = append([]byte(nil), u.TOTPSecret...)
	}
	return &c
}
