package client

import (
	"context"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
)

// API paths used by the client and the session controller.
const (
	PathHealth            = "/health"
	PathRegister          = "/auth/register"
	PathLogin             = "/auth/login"
	PathLogin2FA          = "/auth/2fa/login"
	PathRefresh           = "/auth/refresh"
	PathLogout            = "/auth/logout"
	PathForgotPassword    = "/auth/forgot-password"
	PathResetPassword     = "/auth/reset-password"
	PathVerifyEmail       = "/auth/verify-email"
	PathResendVerifyEmail = "/auth/verify-email/resend"
	PathMe                = "/auth/me"
	PathProfile           = "/auth/profile"
	PathChangePassword    = "/auth/change-password"
	PathTwoFactorSetup    = "/auth/2fa/setup"
	PathTwoFactorEnable   = "/auth/2fa/enable"
	PathTwoFactorDisable  = "/auth/2fa/disable"
)

// LoginResponse is either a full sign-in (Tokens and User set) or a pending
// second factor (Pending set).
type LoginResponse struct {
	Tokens  *models.TokenPair
	User    *models.User
	Pending *models.PendingTwoFactor
}

// Client is the transport contract of the auth API.
type Client interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Complete2FA(ctx context.Context, tempToken, code string) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	Health(ctx context.Context) error

	// Do sends a JSON request. A non-empty accessToken is sent as a bearer
	// credential; in and out may be nil.
	Do(ctx context.Context, method, path, accessToken string, in, out any) error
}
