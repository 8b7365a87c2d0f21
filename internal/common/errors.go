package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors. They never cross the service boundary.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Token lifecycle errors.
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenReused    = errors.New("token reused")
	ErrSessionExpired = errors.New("session expired")

	// Second factor and one-time token errors.
	ErrTicketExpired       = errors.New("two-factor ticket expired")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrVerificationExpired = errors.New("verification link expired")

	// Account errors.
	ErrEmailInUse  = errors.New("email already in use")
	ErrValidation  = errors.New("validation error")
	ErrUnsupported = errors.New("operation not supported for this account")

	// Transport errors seen by clients.
	ErrRequestTimeout = errors.New("request timeout")
	ErrNetwork        = errors.New("network error")

	ErrInternal = errors.New("internal error")
)

// AccountLockedError reports a lockout together with the remaining cool-down.
// It matches ErrAccountLocked with errors.Is.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %ds", e.RemainingSeconds())
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RemainingSeconds rounds the remaining cool-down up to whole seconds.
func (e *AccountLockedError) RemainingSeconds() int {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// NewValidationError wraps ErrValidation with a human readable reason.
func NewValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// Error codes used on the wire. Clients map them back to the sentinels above.
const (
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeLocked              = "LOCKED"
	CodeExpired             = "EXPIRED"
	CodeInvalid             = "INVALID"
	CodeReused              = "REUSED"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeTicketExpired       = "TICKET_EXPIRED"
	CodeInvalidCode         = "INVALID_CODE"
	CodeVerificationExpired = "VERIFICATION_EXPIRED"
	CodeEmailInUse          = "EMAIL_IN_USE"
	CodeValidation          = "VALIDATION"
	CodeUnsupported         = "UNSUPPORTED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

var codeErrors = map[string]error{
	CodeInvalidCredentials:  ErrInvalidCredentials,
	CodeLocked:              ErrAccountLocked,
	CodeExpired:             ErrTokenExpired,
	CodeInvalid:             ErrTokenInvalid,
	CodeReused:              ErrTokenReused,
	CodeSessionExpired:      ErrSessionExpired,
	CodeTicketExpired:       ErrTicketExpired,
	CodeInvalidCode:         ErrInvalidCode,
	CodeVerificationExpired: ErrVerificationExpired,
	CodeEmailInUse:          ErrEmailInUse,
	CodeValidation:          ErrValidation,
	CodeUnsupported:         ErrUnsupported,
	CodeInternal:            ErrInternal,
}

// ErrorForCode returns the sentinel for a wire code, or nil when unknown.
func ErrorForCode(code string) error {
	return codeErrors[code]
}

// CodeForError returns the wire code for err. Unknown errors map to INTERNAL.
// Order matters: SESSION_EXPIRED wins over the REUSED cause it wraps.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return CodeSessionExpired
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return CodeLocked
	case errors.Is(err, ErrTokenReused):
		return CodeReused
	case errors.Is(err, ErrTokenExpired):
		return CodeExpired
	case errors.Is(err, ErrTokenInvalid):
		return CodeInvalid
	case errors.Is(err, ErrTicketExpired):
		return CodeTicketExpired
	case errors.Is(err, ErrInvalidCode):
		return CodeInvalidCode
	case errors.Is(err, ErrVerificationExpired):
		return CodeVerificationExpired
	case errors.Is(err, ErrEmailInUse):
		return CodeEmailInUse
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	default:
		return CodeInternal
	}
}
