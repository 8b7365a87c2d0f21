package session

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/client"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
)

func (c *Controller) fetchUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.AuthenticatedRequest(ctx, http.MethodGet, client.PathMe, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me reloads the signed-in account and publishes it.
func (c *Controller) Me(ctx context.Context) (*models.User, error) {
	user, err := c.fetchUser(ctx)
	if err != nil {
		return nil, err
	}
	c.setUser(user)
	return user, nil
}

func (c *Controller) setUser(user *models.User) {
	c.state.update(func(st *State) {
		if st.Status == StatusAuthenticated {
			st.User = user
			st.Err = nil
		}
	})
}

// VerifyEmail redeems a link token. Verifying the signed-in account updates
// the published user.
func (c *Controller) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	user, err := c.api.VerifyEmail(ctx, token)
	if err != nil {
		return nil, err
	}

	if cur := c.state.Snapshot(); cur.User != nil && cur.User.ID == user.ID {
		c.setUser(user)
	}
	return user, nil
}

// ResendVerification reports whether a new link was sent; false means the
// address is already verified.
func (c *Controller) ResendVerification(ctx context.Context) (bool, error) {
	var out struct {
		Sent bool `json:"sent"`
	}
	if err := c.AuthenticatedRequest(ctx, http.MethodPost, client.PathResendVerifyEmail, nil, &out); err != nil {
		return false, err
	}
	return out.Sent, nil
}

func (c *Controller) RequestEmailChange(ctx context.Context, newEmail string) error {
	in := map[string]string{"newEmail": newEmail}
	if err := c.AuthenticatedRequest(ctx, http.MethodPatch, client.PathProfile, in, nil); err != nil {
		return err
	}
	c.refreshUser(ctx)
	return nil
}

func (c *Controller) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"currentPassword": current, "newPassword": next}
	return c.AuthenticatedRequest(ctx, http.MethodPost, client.PathChangePassword, in, nil)
}

func (c *Controller) SetupTOTP(ctx context.Context) (*models.TOTPSetup, error) {
	var out models.TOTPSetup
	if err := c.AuthenticatedRequest(ctx, http.MethodPost, client.PathTwoFactorSetup, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableTOTP confirms the secret from SetupTOTP with a current code.
func (c *Controller) EnableTOTP(ctx context.Context, secret, code string) error {
	in := map[string]string{"method": "totp", "secret": secret, "token": code}
	if err := c.AuthenticatedRequest(ctx, http.MethodPost, client.PathTwoFactorEnable, in, nil); err != nil {
		return err
	}
	c.refreshUser(ctx)
	return nil
}

// EnableEmailTwoFactor turns on emailed sign-in codes.
func (c *Controller) EnableEmailTwoFactor(ctx context.Context, password string) error {
	in := map[string]string{"method": "email", "password": password}
	if err := c.AuthenticatedRequest(ctx, http.MethodPost, client.PathTwoFactorEnable, in, nil); err != nil {
		return err
	}
	c.refreshUser(ctx)
	return nil
}

// DisableTwoFactor takes an authenticator code, or the password for the
// email channel.
func (c *Controller) DisableTwoFactor(ctx context.Context, code, password string) error {
	in := map[string]string{"token": code, "password": password}
	if err := c.AuthenticatedRequest(ctx, http.MethodPost, client.PathTwoFactorDisable, in, nil); err != nil {
		return err
	}
	c.refreshUser(ctx)
	return nil
}

// refreshUser reloads the account after a change; failures only cost
// freshness.
func (c *Controller) refreshUser(ctx context.Context) {
	if _, err := c.Me(ctx); err != nil {
		c.logger.Warn(ctx, "account reload failed", "error", err)
	}
}
