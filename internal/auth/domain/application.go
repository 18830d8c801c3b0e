package domain

import "time"

// Application is an OAuth client registration. Public applications carry no
// secret hash and must use PKCE; confidential applications authenticate with
// client_secret_basic or client_secret_post.
type Application struct {
	ID            string
	Name          string
	SecretHash    string // empty for public applications
	IsPublic      bool
	IsVerified    bool // unlocks scopes flagged requires_verification
	AllowedScopes []string
	RedirectURIs  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScopeWildcard in AllowedScopes grants an application every catalog scope.
const ScopeWildcard = "*"

// AllowsScope reports whether the application may request the named scope.
func (a *Application) AllowsScope(name string) bool {
	for _, s := range a.AllowedScopes {
		if s == ScopeWildcard || s == name {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether the redirect URI is registered.
func (a *Application) AllowsRedirectURI(uri string) bool {
	for _, u := range a.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
