package domain

import "time"

// TokenResponse is what the token endpoint returns: the signed access token,
// plus the opaque refresh token and the OIDC ID token when the grant calls
// for them.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds until expiry
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"` // space-delimited
}

// RefreshToken models the stored refresh token record. Only the SHA-256
// fingerprint of the opaque token is persisted. RotatedAt marks a token as
// exchanged; a non-nil value means any further use is a replay.
type RefreshToken struct {
	ID            string
	UserID        string // empty for tokens without a user context
	ApplicationID string
	TokenHash     string // base64url SHA-256 of the opaque token
	Scopes        []string
	ExpiresAt     time.Time
	RotatedAt     *time.Time
	Revoked       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RevokedToken is a revocation record keyed by jti. Its presence is the sole
// authority for early access-token invalidation: signature validity alone
// does not imply liveness.
type RevokedToken struct {
	JTI       string
	ExpiresAt time.Time // original token expiry, so rows can be reaped later
	RevokedAt time.Time
}
