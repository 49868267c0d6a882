package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

// TokenInfo is what the client can tell about an access token without the
// server's key. The server remains the only authority on validity.
type TokenInfo struct {
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Subject     string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	IssuedAt    time.Time `json:"issued_at,omitzero" yaml:"issued_at,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero" yaml:"expires_at,omitempty"`
	Opaque      bool      `json:"opaque" yaml:"opaque"`
}

// InspectToken reads the registered claims of a JWT access token without
// verifying its signature. Tokens that are not JWTs are reported as opaque.
func InspectToken(token string) (TokenInfo, error) {
	if token == "" {
		return TokenInfo{}, fmt.Errorf("empty token")
	}

	info := TokenInfo{Fingerprint: tokenstore.Fingerprint(token)}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		info.Opaque = true
		return info, nil
	}

	info.Subject = claims.Subject
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token's own expiry claim has passed.
// Tokens without an expiry claim never report expired.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// ExpiresIn returns the time left before expiry, or zero if unknown or past.
func (i TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if i.ExpiresAt.IsZero() || i.Expired(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}
