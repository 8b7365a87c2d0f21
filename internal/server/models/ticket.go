package models

import "time"

// TwoFactorChannel is how the second factor code reaches the user.
type TwoFactorChannel string

const (
	ChannelTOTP  TwoFactorChannel = "totp"
	ChannelEmail TwoFactorChannel = "email"
)

// Ticket is a pending-2FA credential: proof that the password check passed.
// It cannot authenticate API calls.
type Ticket struct {
	ID          string
	TicketHash  string
	UserID      string
	Channel     TwoFactorChannel
	CodeHash    string // email channel only
	Attempts    int
	MaxAttempts int
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}
