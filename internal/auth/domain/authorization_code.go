package domain

import "time"

// AuthorizationCode is the ephemeral record behind an issued code. It lives
// in the TTL store keyed by SHA-256 of the code and is consumed exactly once
// by the token endpoint, successful exchange or not.
type AuthorizationCode struct {
	ApplicationID       string    `json:"application_id"`
	UserID              string    `json:"user_id"`
	Scopes              []string  `json:"scopes"`
	RedirectURI         string    `json:"redirect_uri"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	Nonce               string    `json:"nonce,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
}
