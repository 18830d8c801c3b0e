package domain

import "time"

// SigningKey is an RSA key pair used for JWT issuance. At most one key is
// primary+active at a time; that key signs new tokens. Every active key stays
// valid for verification so rotation does not break outstanding tokens. Keys
// are retired by clearing IsActive, never hard-deleted while unexpired tokens
// may still reference them.
type SigningKey struct {
	ID            string
	Kid           string // key identifier published in JWKS and JWT headers
	Algorithm     string // always "RS256"
	PublicKeyPEM  string
	PrivateKeyPEM string
	IsPrimary     bool
	IsActive      bool
	CreatedAt     time.Time
}
