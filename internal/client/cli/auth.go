package cli

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

// newPassword asks twice and returns the password once both entries match.
func (a *App) newPassword(prompt string) ([]byte, error) {
	password, err := getPassword(a.reader, prompt, a.out)
	if err != nil {
		return nil, err
	}
	confirm, err := getPassword(a.reader, "Repeat password", a.out)
	if err != nil {
		common.WipeByteArray(password)
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		common.WipeByteArray(password)
		return nil, errPasswordMismatch
	}
	return password, nil
}

// Register prompts for an email and password and creates a local account.
// The server mails a verification link to the address.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := a.newPassword("Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.api.Register(ctx, email, string(password))
	if err != nil {
		return err
	}

	a.printf("Account created for %s. Check your inbox for the verification link.\n", user.Email)
	return nil
}

// Login prompts for credentials and, when the account asks for it, for a
// second-factor code.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		a.printf("Already logged in. Run 'logout' first to switch accounts.\n")
		return nil
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.ctl.Login(ctx, email, string(password))
	if err != nil {
		return err
	}

	if res.Pending != nil {
		return a.secondFactor(ctx, res.Pending)
	}

	a.signedIn(res.User)
	return nil
}

func (a *App) signedIn(user *models.User) {
	if user == nil || user.Email == "" {
		a.printf("Logged in.\n")
		return
	}
	a.printf("Logged in as %s.\n", user.Email)
}

func (a *App) secondFactor(ctx context.Context, pending *models.PendingTwoFactor) error {
	source := "authenticator app"
	if pending.Channel == "email" {
		source = "email we just sent"
	}

	for {
		code, err := getSimpleText(a.reader, "Enter the 6-digit code from your "+source+" (empty to cancel)", a.out)
		if err != nil {
			a.ctl.CancelTwoFactor()
			return err
		}
		if code == "" {
			a.ctl.CancelTwoFactor()
			a.printf("Sign-in cancelled.\n")
			return nil
		}

		res, err := a.ctl.Complete2FA(ctx, code)
		if errors.Is(err, common.ErrInvalidCode) {
			a.printf("That code is not right, try again.\n")
			continue
		}
		if err != nil {
			return err
		}

		a.signedIn(res.User)
		return nil
	}
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.ctl.Logout(ctx); err != nil {
		a.logger.Warn(ctx, "logout incomplete", "error", err)
		a.printf("Logged out on this device; the server could not be told.\n")
		return nil
	}
	a.printf("Logged out.\n")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	user, err := a.ctl.Me(ctx)
	if err != nil {
		return err
	}

	a.printf("id:          %s\n", user.ID)
	a.printf("email:       %s\n", orDash(user.Email))
	if user.PendingEmail != "" {
		a.printf("pending:     %s (waiting for confirmation)\n", user.PendingEmail)
	}
	a.printf("verified:    %t\n", user.EmailVerified)
	a.printf("role:        %s\n", user.Role)
	a.printf("provider:    %s\n", user.AuthProvider)
	a.printf("two-factor:  %t\n", user.TwoFactorEnabled)
	if user.LastLoginAt != nil {
		a.printf("last login:  %s\n", user.LastLoginAt.Local().Format(time.DateTime))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// argOrPrompt returns args[0] or asks for the value.
func (a *App) argOrPrompt(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

func (a *App) Verify(ctx context.Context, args []string) error {
	token, err := a.argOrPrompt(args, "Paste the token from the verification link")
	if err != nil {
		return err
	}
	if token == "" {
		return usage("verify <token>")
	}

	user, err := a.ctl.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}
	a.printf("Email %s verified.\n", user.Email)
	return nil
}

func (a *App) Resend(ctx context.Context) error {
	sent, err := a.ctl.ResendVerification(ctx)
	if err != nil {
		return err
	}
	if sent {
		a.printf("A new verification link is on its way. Earlier links no longer work.\n")
	} else {
		a.printf("Your email is already verified.\n")
	}
	return nil
}

func (a *App) ChangeEmail(ctx context.Context, args []string) error {
	address, err := a.argOrPrompt(args, "Enter the new email address")
	if err != nil {
		return err
	}
	if address == "" {
		return usage("email <new address>")
	}

	if err := a.ctl.RequestEmailChange(ctx, address); err != nil {
		return err
	}
	a.printf("Confirmation link sent to %s. Your current address stays active until you confirm.\n", address)
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	current, err := getPassword(a.reader, "Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := a.newPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.ctl.ChangePassword(ctx, string(current), string(next)); err != nil {
		return err
	}
	a.printf("Password changed. Other devices have been signed out.\n")
	return nil
}

func (a *App) Forgot(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter your account email", a.out)
	if err != nil {
		return err
	}

	if err := a.api.ForgotPassword(ctx, email); err != nil {
		return err
	}
	a.printf("If an account exists for that address, a reset link is on its way.\n")
	return nil
}

func (a *App) Reset(ctx context.Context, args []string) error {
	token, err := a.argOrPrompt(args, "Paste the token from the reset link")
	if err != nil {
		return err
	}
	if token == "" {
		return usage("reset <token>")
	}

	password, err := a.newPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.ResetPassword(ctx, token, string(password)); err != nil {
		return err
	}
	a.printf("Password updated and every session signed out. Log in with the new password.\n")
	return nil
}
