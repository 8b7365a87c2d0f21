package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/gorilla/securecookie"
)

// cookiePath limits the refresh cookie to the auth endpoints.
const cookiePath = "/auth"

// RefreshCookie carries the refresh token in an httpOnly cookie, signed and
// encrypted with securecookie so scripts can neither read nor forge it.
type RefreshCookie struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewRefreshCookie takes a 32 or 64 byte hash key and a 32 byte block key.
func NewRefreshCookie(hashKey, blockKey []byte, secure bool, maxAge time.Duration) *RefreshCookie {
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(maxAge / time.Second))
	return &RefreshCookie{codec: codec, secure: secure}
}

func (c *RefreshCookie) Set(w http.ResponseWriter, token string, expires time.Time) error {
	value, err := c.codec.Encode(common.RefreshCookieName, token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    value,
		Path:     cookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Read returns the refresh token from the request cookie, if a valid one
// is present.
func (c *RefreshCookie) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(common.RefreshCookieName)
	if err != nil {
		return "", false
	}
	var token string
	if err := c.codec.Decode(common.RefreshCookieName, ck.Value, &token); err != nil {
		return "", false
	}
	return token, token != ""
}

func (c *RefreshCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    "",
		Path:     cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
