package domain

import "time"

// Consent records which scopes a user has granted to an application. Granted
// scopes only ever grow across successive authorizations (incremental
// authorization); they shrink only through explicit revocation.
type Consent struct {
	ID            string
	UserID        string
	ApplicationID string
	GrantedScopes []string
	ScopeHistory  []ConsentGrant
	RevokedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConsentGrant is one append-only history entry. It records only the scopes
// added by that authorization, not the full set at the time.
type ConsentGrant struct {
	Scopes    []string  `json:"scopes"`
	GrantedAt time.Time `json:"granted_at"`
}

// HasScope reports whether the consent covers the named scope.
func (c *Consent) HasScope(name string) bool {
	for _, s := range c.GrantedScopes {
		if s == name {
			return true
		}
	}
	return false
}

// IsRevoked reports whether the consent has been revoked.
func (c *Consent) IsRevoked() bool { return c.RevokedAt != nil }
