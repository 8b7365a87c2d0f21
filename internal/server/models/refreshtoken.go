package models

import "time"

// Session is one refresh-token chain. Revoking it invalidates every access
// and refresh token minted in the chain.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	RevokedAt *time.Time
}

func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// RefreshToken is a single-use link of a session chain. Only the SHA-256 of
// the opaque token is stored.
type RefreshToken struct {
	TokenHash string
	SessionID string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RotatedAt *time.Time // set once the token has been exchanged
	RevokedAt *time.Time // set when superseded without being used
}
