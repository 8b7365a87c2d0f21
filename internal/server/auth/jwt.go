// Package auth holds the credential primitives of the server: signed access
// tokens, password hashing and TOTP codes.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

// Claims of an access token. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string        `json:"sid"`
	Role      identity.Role `json:"role"`
}

// GenerateToken signs an HS256 access token valid until expiresAt.
func GenerateToken(userID, sessionID string, role identity.Role, secretKey []byte, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		Role:      role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature and expiry. Expired tokens yield
// common.ErrTokenExpired, everything else common.ErrTokenInvalid.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" || claims.SessionID == "" {
		return nil, common.ErrTokenInvalid
	}

	return claims, nil
}
