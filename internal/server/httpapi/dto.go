package httpapi

import (
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type twoFactorLoginRequest struct {
	TempToken string `json:"tempToken"`
	Token     string `json:"token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type profileRequest struct {
	NewEmail string `json:"newEmail"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// twoFactorRequest serves enable and disable. Method "email" turns on
// emailed codes and is confirmed by password; the default is an authenticator.
type twoFactorRequest struct {
	Method   string `json:"method,omitempty"`
	Secret   string `json:"secret,omitempty"`
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email,omitempty"`
	PendingEmail     string     `json:"pendingEmail,omitempty"`
	Role             string     `json:"role"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	AuthProvider     string     `json:"authProvider"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func newUserResponse(u *models.User) *userResponse {
	if u == nil {
		return nil
	}
	out := &userResponse{
		ID:               u.ID,
		Email:            u.EmailAddress(),
		Role:             string(u.Role),
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		AuthProvider:     string(u.AuthProvider),
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
	if u.PendingEmail != nil {
		out.PendingEmail = *u.PendingEmail
	}
	return out
}

type tokenResponse struct {
	AccessToken     string        `json:"accessToken"`
	RefreshToken    string        `json:"refreshToken"`
	AccessExpiresAt time.Time     `json:"accessExpiresAt"`
	User            *userResponse `json:"user,omitempty"`
}

func newTokenResponse(p *tokens.TokenPair, u *models.User) *tokenResponse {
	return &tokenResponse{
		AccessToken:     p.AccessToken,
		RefreshToken:    p.RefreshToken,
		AccessExpiresAt: p.AccessExpiresAt,
		User:            newUserResponse(u),
	}
}

type pendingTwoFactorResponse struct {
	Requires2FA bool      `json:"requires2FA"`
	TempToken   string    `json:"tempToken"`
	Channel     string    `json:"channel"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type totpSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

type resendResponse struct {
	Sent bool `json:"sent"`
}

type messageResponse struct {
	Message string `json:"message"`
}
