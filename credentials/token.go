package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenLifetime matches the backend's session cookie max-age.
const DefaultTokenLifetime = 24 * time.Hour

// TokenExpiry reads the exp claim from a JWT without verifying its signature.
// The backend holds the signing key; the CLI only needs to know when to stop
// sending the token. Tokens that are not JWTs, or carry no exp, fall back to
// issuedAt+DefaultTokenLifetime, or to the zero time when issuedAt is zero.
func TokenExpiry(token string, issuedAt time.Time) time.Time {
	fallback := time.Time{}
	if !issuedAt.IsZero() {
		fallback = issuedAt.Add(DefaultTokenLifetime)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

// TokenSubject returns the sub claim of a JWT, or "" when unavailable.
func TokenSubject(token string) string {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
