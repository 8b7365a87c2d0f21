// Package models defines client-side data models used by the cryptofolio client.
package models

import (
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
)

// TokenPair is the credential set a signed-in client holds.
type TokenPair struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Empty reports whether there is nothing to authenticate with.
func (p *TokenPair) Empty() bool {
	return p == nil || p.AccessToken == "" || p.RefreshToken == ""
}

// User is the account as reported by the auth API.
type User struct {
	ID               string                `json:"id"`
	Email            string                `json:"email,omitempty"`
	PendingEmail     string                `json:"pendingEmail,omitempty"`
	Role             identity.Role         `json:"role"`
	EmailVerified    bool                  `json:"emailVerified"`
	TwoFactorEnabled bool                  `json:"twoFactorEnabled"`
	AuthProvider     identity.AuthProvider `json:"authProvider"`
	LastLoginAt      *time.Time            `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// PendingTwoFactor describes a password login waiting for its second factor.
type PendingTwoFactor struct {
	TempToken string    `json:"tempToken"`
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TOTPSetup is a freshly generated authenticator secret.
type TOTPSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}
