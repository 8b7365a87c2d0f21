package cli

import (
	"context"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/guard"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
)

var sampleRoutes = []guard.Route{
	{Path: "/login", GuestOnly: true},
	{Path: "/about", Public: true},
	{Path: "/dashboard"},
	{Path: "/verify-email", Verification: true},
	{Path: "/moderation", RequiredRole: identity.RoleModerator},
	{Path: "/admin", RequiredRole: identity.RoleAdmin},
}

// Status prints the session state and what the route guard would do.
func (a *App) Status(ctx context.Context) error {
	st := a.ctl.State().Snapshot()

	a.printf("state: %s\n", st.Status)
	if st.User != nil {
		a.printf("user:  %s (%s, verified=%t)\n", orDash(st.User.Email), st.User.Role, st.User.EmailVerified)
	}
	if st.Pending != nil {
		a.printf("waiting for a %s code\n", st.Pending.Channel)
	}
	if st.Err != nil {
		a.printf("last error: %s\n", describeError(st.Err))
	}

	in := st.GuardInput()
	for _, r := range sampleRoutes {
		d := guard.Decide(in, r)
		if d.Kind == guard.Redirect {
			a.printf("  %-14s %s -> %s\n", r.Path, d.Kind, d.Target)
			continue
		}
		a.printf("  %-14s %s\n", r.Path, d.Kind)
	}
	return nil
}
