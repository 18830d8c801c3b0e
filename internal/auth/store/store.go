package store

import (
	"context"
	"errors"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Applications() Applications
	Users() Users
	Scopes() Scopes
	Consents() Consents
	SigningKeys() SigningKeys
	RefreshTokens() RefreshTokens
	RevokedTokens() RevokedTokens

	ApplyMigrations() error

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Applications interface {
	// GetApplicationByID fetches a registered OAuth application.
	GetApplicationByID(ctx context.Context, id string) (domain.Application, error)

	// ListApplications returns all applications ordered by creation date (newest first).
	ListApplications(ctx context.Context) ([]domain.Application, error)

	// CreateApplication inserts a new application (id is ULID; secret_hash is
	// empty for public applications).
	CreateApplication(ctx context.Context, app domain.Application) error

	UpdateApplicationScopes(ctx context.Context, appID string, scopes []string) error
	UpdateApplicationVerified(ctx context.Context, appID string, verified bool) error

	// DeleteApplication cascades to refresh_tokens and consents (per schema).
	DeleteApplication(ctx context.Context, appID string) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns a user by email address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUserProfile mutates the profile claim fields and bumps updated_at.
	UpdateUserProfile(ctx context.Context, u domain.User) error

	// DeleteUser cascades to refresh_tokens and consents (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Scopes interface {
	// GetScopeByName fetches a catalog scope by its name.
	GetScopeByName(ctx context.Context, name string) (domain.Scope, error)

	// ListScopes returns the full catalog ordered by name.
	ListScopes(ctx context.Context) ([]domain.Scope, error)

	// CreateScope inserts a new catalog scope.
	CreateScope(ctx context.Context, s domain.Scope) error

	// DeleteScope removes a scope from the catalog.
	DeleteScope(ctx context.Context, name string) error
}

type Consents interface {
	// GetConsent returns the active (unrevoked) consent for a user and
	// application pair.
	GetConsent(ctx context.Context, userID, applicationID string) (domain.Consent, error)

	// CreateConsent inserts a fresh consent with its first history entry.
	CreateConsent(ctx context.Context, c domain.Consent) error

	// UpdateConsentScopes replaces granted_scopes and scope_history and bumps
	// updated_at. Callers are responsible for keeping the grant monotonic.
	UpdateConsentScopes(ctx context.Context, consentID string, grantedScopes []string, history []domain.ConsentGrant) error

	// RevokeConsent stamps revoked_at on the active consent for the pair.
	RevokeConsent(ctx context.Context, userID, applicationID string, at time.Time) error

	// ListConsentsForUser returns all active consents for a user.
	ListConsentsForUser(ctx context.Context, userID string) ([]domain.Consent, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKeyByKid fetches a signing key by its key identifier.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// GetPrimarySigningKey returns the single key flagged primary and active.
	GetPrimarySigningKey(ctx context.Context) (domain.SigningKey, error)

	// ListActiveSigningKeys returns all active keys ordered by creation date
	// (newest first). All of them remain valid for verification.
	ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// DemotePrimarySigningKeys clears is_primary on every key. Paired with
	// CreateSigningKey inside a transaction during rotation.
	DemotePrimarySigningKeys(ctx context.Context) error

	// DeactivateSigningKey clears is_active so the key no longer verifies.
	DeactivateSigningKey(ctx context.Context, kid string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// MarkRefreshTokenRotated stamps rotated_at, marking the token as
	// exchanged. Any later presentation of it is a replay.
	MarkRefreshTokenRotated(ctx context.Context, id string, at time.Time) error

	// RevokeRefreshToken flips revoked=1 and bumps updated_at.
	RevokeRefreshToken(ctx context.Context, id string) error

	// RevokeAllUserApplicationRefreshTokens bulk revocation for a
	// user+application pair (e.g. consent revocation).
	RevokeAllUserApplicationRefreshTokens(ctx context.Context, userID, applicationID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type RevokedTokens interface {
	// AddRevokedToken records a jti on the denylist.
	AddRevokedToken(ctx context.Context, r domain.RevokedToken) error

	// IsTokenRevoked reports whether the jti has been revoked.
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpiredRevokedTokens drops rows whose original token has expired.
	DeleteExpiredRevokedTokens(ctx context.Context) error
}
