package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/mailer"
)

const (
	kindVerifyEmail   = "verify_email"
	kindChangeEmail   = "change_email"
	kindEmailChanging = "email_change_notice"
	kindResetPassword = "reset_password"
	kindTwoFactorCode = "two_factor_code"
)

func (s *AuthService) link(path, token string) string {
	return strings.TrimRight(s.policy.PublicURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func verifyEmailMessage(to, link string, ttl time.Duration) mailer.Message {
	return mailer.Message{
		To:      to,
		Subject: "Confirm your email address",
		Body: fmt.Sprintf("Welcome to Cryptofolio.\n\nConfirm your email address by opening this link:\n%s\n\nThe link expires in %s.\n",
			link, humanDuration(ttl)),
		Kind: kindVerifyEmail,
	}
}

func changeEmailMessage(to, link string, ttl time.Duration) mailer.Message {
	return mailer.Message{
		To:      to,
		Subject: "Confirm your new email address",
		Body: fmt.Sprintf("Someone asked to use this address for a Cryptofolio account.\n\nConfirm the change by opening this link:\n%s\n\nThe link expires in %s. Ignore this email if it was not you.\n",
			link, humanDuration(ttl)),
		Kind: kindChangeEmail,
	}
}

func emailChangingMessage(to string) mailer.Message {
	return mailer.Message{
		To:      to,
		Subject: "Your email address is about to change",
		Body:    "A change of the email address on your Cryptofolio account was requested. This address stays active until the new one is confirmed.\n",
		Kind:    kindEmailChanging,
	}
}

func resetPasswordMessage(to, link string, ttl time.Duration) mailer.Message {
	return mailer.Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Open this link to choose a new Cryptofolio password:\n%s\n\nThe link expires in %s and can be used once.\n",
			link, humanDuration(ttl)),
		Kind: kindResetPassword,
	}
}

func twoFactorCodeMessage(to, code string, ttl time.Duration) mailer.Message {
	return mailer.Message{
		To:      to,
		Subject: "Your sign-in code",
		Body:    fmt.Sprintf("Your Cryptofolio sign-in code is %s.\n\nIt expires in %s.\n", code, humanDuration(ttl)),
		Kind:    kindTwoFactorCode,
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute && d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
