package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The backend owns verification; the client only needs to know when to stop
// sending the token.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func resolveExpiry(now time.Time, declared time.Time, token string, ttl time.Duration) time.Time {
	if !declared.IsZero() {
		return declared
	}
	if exp, ok := TokenExpiry(token); ok {
		return exp
	}
	return now.Add(ttl)
}
