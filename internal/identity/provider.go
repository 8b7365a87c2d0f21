package identity

import (
	"fmt"
	"strings"
)

// AuthProvider is the closed set of ways an account can sign in.
type AuthProvider string

const (
	ProviderLocal    AuthProvider = "local"
	ProviderGoogle   AuthProvider = "google"
	ProviderFacebook AuthProvider = "facebook"
	ProviderTelegram AuthProvider = "telegram"
)

// ParseProvider maps a provider name onto the variant.
func ParseProvider(s string) (AuthProvider, error) {
	switch p := AuthProvider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderLocal, ProviderGoogle, ProviderFacebook, ProviderTelegram:
		return p, nil
	default:
		return "", fmt.Errorf("unknown auth provider %q", s)
	}
}

// PreVerifiesEmail reports whether the provider hands over addresses it has
// already verified, so the local verification gate does not apply.
func (p AuthProvider) PreVerifiesEmail() bool {
	switch p {
	case ProviderGoogle, ProviderFacebook:
		return true
	default:
		return false
	}
}

// UsesPassword reports whether the account signs in with a local password,
// which is also what the lockout policy protects.
func (p AuthProvider) UsesPassword() bool {
	switch p {
	case ProviderLocal:
		return true
	default:
		return false
	}
}

// IsSocial reports whether sign-in is delegated to a third party.
func (p AuthProvider) IsSocial() bool {
	switch p {
	case ProviderGoogle, ProviderFacebook, ProviderTelegram:
		return true
	default:
		return false
	}
}
