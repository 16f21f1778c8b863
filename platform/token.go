package platform

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims holds the diagnostic fields of interest from a platform access
// token.
type TokenClaims struct {
	Org     string
	Subject string
	Expiry  time.Time
}

// InspectToken parses a JWT access token without verifying its signature and
// extracts the tenant org, subject, and expiry. It exists for diagnostics
// only; nothing security-relevant may depend on it.
func InspectToken(raw string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("platform: parse access token: %w", err)
	}
	out := TokenClaims{}
	if org, ok := claims["org"].(string); ok {
		out.Org = org
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}
	return out, nil
}
