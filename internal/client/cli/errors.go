package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/client"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/session"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errUsage            = errors.New("usage")
)

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}

// describeError turns an error into a sentence for the terminal.
func describeError(err error) string {
	var locked *common.AccountLockedError
	if errors.As(err, &locked) {
		return fmt.Sprintf("Too many failed attempts. Try again in %s.", formatCountdown(locked.Remaining))
	}

	switch {
	case errors.Is(err, errUsage), errors.Is(err, errPasswordMismatch):
		return err.Error()
	case errors.Is(err, session.ErrNotAuthenticated):
		return "You are not logged in."
	case errors.Is(err, session.ErrNoPendingLogin):
		return "No sign-in is waiting for a code. Run 'login' first."
	case errors.Is(err, common.ErrSessionExpired):
		return "Your session has ended. Please log in again."
	case errors.Is(err, common.ErrInvalidCredentials):
		return "Wrong email or password."
	case errors.Is(err, common.ErrTicketExpired):
		return "The sign-in code has expired. Run 'login' again."
	case errors.Is(err, common.ErrInvalidCode):
		return "That code is not right."
	case errors.Is(err, common.ErrVerificationExpired):
		return "This link has expired. Request a new one with 'resend' (email) or 'forgot' (password)."
	case errors.Is(err, common.ErrTokenInvalid):
		return "This link is not valid. Request a new one with 'resend' (email) or 'forgot' (password)."
	case errors.Is(err, common.ErrEmailInUse):
		return "That email address is already in use."
	case errors.Is(err, common.ErrRequestTimeout):
		return "The server took too long to answer. Try again."
	case errors.Is(err, common.ErrNetwork):
		return "Cannot reach the server. Check your connection and try again."
	case errors.Is(err, client.ErrRateLimited):
		return "Too many requests. Wait a minute and try again."
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrUnsupported):
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return apiErr.Message
		}
		return err.Error()
	default:
		return err.Error()
	}
}

// formatCountdown renders d as m:ss, rounding up.
func formatCountdown(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
