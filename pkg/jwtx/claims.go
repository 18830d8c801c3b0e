package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for standard OAuth2/OIDC flows. These provide
// sensible security defaults but can be overridden per-service.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultIDTokenTTL is the default lifetime for OIDC ID tokens.
	DefaultIDTokenTTL = time.Hour
)

// AccessClaims are the claims embedded in RFC 9068 access tokens. The jti is
// the revocation lookup key, so it must be fresh per issuance.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Scope is the space-delimited list of granted scopes.
	Scope string `json:"scope,omitempty"`

	// ClientID identifies the application the token was issued to.
	ClientID string `json:"client_id,omitempty"`
}

// NewAccessClaims builds minimally-correct access token claims. An empty
// subject is omitted from the payload entirely, which is how
// client_credentials tokens (no user context) are represented.
func NewAccessClaims(
	subject, clientID string,
	scope string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) AccessClaims {
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Scope:    scope,
		ClientID: clientID,
	}
}

// IDClaims are OIDC ID token claims. Optional profile fields carry omitempty
// so an undefined claim disappears from the payload instead of appearing as
// null, which is what the OIDC core spec expects.
type IDClaims struct {
	jwt.RegisteredClaims

	Nonce string `json:"nonce,omitempty"`

	// Unlocked by the "profile" scope.
	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Picture    string `json:"picture,omitempty"`

	// Unlocked by the "email" scope.
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches the expected value.
func (c *AccessClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *AccessClaims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
