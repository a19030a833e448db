// internal/auth/session.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// signingKey is the HS256 secret. Empty means auth is disabled.
	signingKey []byte

	// tokenTTL is how long issued tokens stay valid (0 => never expire).
	tokenTTL time.Duration
)

// ErrDisabled is returned when a token operation is attempted without a secret.
var ErrDisabled = errors.New("auth disabled: no signing secret configured")

// Init sets the HS256 secret and the token lifetime. An empty secret disables auth.
func Init(secret string, ttl time.Duration) {
	signingKey = []byte(secret)
	tokenTTL = ttl
}

// Enabled reports whether a signing secret is configured.
func Enabled() bool {
	return len(signingKey) > 0
}

// CreateJWT creates a signed token with "sub" = userID and "name" = name.
// No exp claim is set when the configured TTL is zero.
func CreateJWT(userID, name string) (string, error) {
	if !Enabled() {
		return "", ErrDisabled
	}
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// AuthenticateJWT verifies a token string and returns its "sub" claim.
func AuthenticateJWT(tokenString string) (string, error) {
	if !Enabled() {
		return "", ErrDisabled
	}
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("missing sub in jwt")
	}

	return userID, nil
}
