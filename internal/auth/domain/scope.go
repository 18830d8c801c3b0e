package domain

// Scope is a catalog entry. Scopes flagged RequiresVerification can only be
// requested by verified applications.
type Scope struct {
	Name                 string
	Description          string
	RequiresVerification bool
}

// OIDC scopes recognized even without a catalog row.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
)

// BuiltinOIDCScopes are always valid to request.
var BuiltinOIDCScopes = map[string]struct{}{
	ScopeOpenID:        {},
	ScopeProfile:       {},
	ScopeEmail:         {},
	ScopeOfflineAccess: {},
}

// IsBuiltinOIDCScope reports whether name is one of the standard OIDC scopes.
func IsBuiltinOIDCScope(name string) bool {
	_, ok := BuiltinOIDCScopes[name]
	return ok
}
