// Package identity holds the account vocabulary shared by the auth server and
// its clients: roles with their rank order and the closed set of sign-in
// providers.
package identity

import (
	"fmt"
	"strings"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// Rank returns the position of r in the user < moderator < admin order.
// Unknown roles rank 0 and satisfy nothing.
func (r Role) Rank() int {
	return roleRank[r]
}

// Satisfies reports whether r is at least required.
// An empty requirement is always satisfied by a known role; an unknown
// requirement is satisfied by none.
func (r Role) Satisfies(required Role) bool {
	if !r.Valid() {
		return false
	}
	if required == "" {
		return true
	}
	return required.Valid() && r.Rank() >= required.Rank()
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
