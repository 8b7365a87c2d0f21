// Package guard decides what a client shows for a route given the current
// auth snapshot. Decide is a pure function and safe to call from anywhere.
package guard

import "github.com/dmitrijs2005/cryptofolio-auth/internal/identity"

// Redirect targets.
const (
	LoginPath        = "/login"
	HomePath         = "/dashboard"
	UnauthorizedPath = "/unauthorized"
)

type Input struct {
	Initialized   bool
	Authenticated bool
	Role          identity.Role
	EmailVerified bool
	HasEmail      bool
	AuthProvider  identity.AuthProvider
}

type Route struct {
	Path string

	// Public routes render for everyone; GuestOnly ones (sign-in, sign-up)
	// send signed-in users home.
	Public    bool
	GuestOnly bool

	RequiredRole identity.Role

	// Verification marks the page that asks users to verify their email.
	// The verification gate never applies to it.
	Verification bool
}

type Kind int

const (
	Loading Kind = iota
	Redirect
	RequireVerification
	Render
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case RequireVerification:
		return "require_verification"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

type Decision struct {
	Kind   Kind
	Target string // set for Redirect

	// ReturnTo is the originally requested path on a redirect to sign-in.
	ReturnTo string
}

func Decide(in Input, r Route) Decision {
	if !in.Initialized {
		return Decision{Kind: Loading}
	}

	if r.GuestOnly {
		if in.Authenticated {
			return Decision{Kind: Redirect, Target: HomePath}
		}
		return Decision{Kind: Render}
	}
	if r.Public {
		return Decision{Kind: Render}
	}

	if !in.Authenticated {
		return Decision{Kind: Redirect, Target: LoginPath, ReturnTo: r.Path}
	}

	if r.RequiredRole != "" && !in.Role.Satisfies(r.RequiredRole) {
		return Decision{Kind: Redirect, Target: UnauthorizedPath}
	}

	if needsVerification(in) && !r.Verification {
		return Decision{Kind: RequireVerification}
	}
	return Decision{Kind: Render}
}

// needsVerification is false for accounts without an email and for
// providers that hand over verified addresses.
func needsVerification(in Input) bool {
	if !in.HasEmail || in.AuthProvider.PreVerifiesEmail() {
		return false
	}
	return !in.EmailVerified
}
