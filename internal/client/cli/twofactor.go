package cli

import (
	"context"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

// TwoFactor handles "2fa setup", "2fa email" and "2fa disable".
func (a *App) TwoFactor(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("2fa setup|email|disable")
	}

	switch args[0] {
	case "setup":
		return a.setupTOTP(ctx)
	case "email":
		return a.enableEmailCodes(ctx)
	case "disable":
		return a.disableTwoFactor(ctx)
	default:
		return usage("2fa setup|email|disable")
	}
}

func (a *App) setupTOTP(ctx context.Context) error {
	setup, err := a.ctl.SetupTOTP(ctx)
	if err != nil {
		return err
	}

	a.printf("Add this account to your authenticator app:\n  secret: %s\n  url:    %s\n", setup.Secret, setup.OTPAuthURL)

	code, err := getSimpleText(a.reader, "Enter the 6-digit code the app shows", a.out)
	if err != nil {
		return err
	}
	if err := a.ctl.EnableTOTP(ctx, setup.Secret, code); err != nil {
		return err
	}
	a.printf("Two-factor authentication is on.\n")
	return nil
}

func (a *App) enableEmailCodes(ctx context.Context) error {
	password, err := getPassword(a.reader, "Confirm with your password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.ctl.EnableEmailTwoFactor(ctx, string(password)); err != nil {
		return err
	}
	a.printf("Sign-in codes will be sent to your email.\n")
	return nil
}

func (a *App) disableTwoFactor(ctx context.Context) error {
	code, err := getSimpleText(a.reader, "Enter a code from your authenticator app (empty to confirm with your password)", a.out)
	if err != nil {
		return err
	}

	var password []byte
	if code == "" {
		if password, err = getPassword(a.reader, "Password", a.out); err != nil {
			return err
		}
		defer common.WipeByteArray(password)
	}

	if err := a.ctl.DisableTwoFactor(ctx, code, string(password)); err != nil {
		return err
	}
	a.printf("Two-factor authentication is off.\n")
	return nil
}
