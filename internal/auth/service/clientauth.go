package service

import (
	"context"
	"errors"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
)

var (
	// ErrInvalidClient covers unknown applications and failed secret checks.
	// One error for both cases so responses do not leak which part failed.
	ErrInvalidClient = errors.New("service: invalid client")

	// ErrConfidentialRequired is returned when an endpoint restricted to
	// confidential applications is called by a public one.
	ErrConfidentialRequired = errors.New("service: confidential client required")
)

// ClientAuthenticator resolves and authenticates OAuth applications.
type ClientAuthenticator struct {
	store store.Store
}

func NewClientAuthenticator(st store.Store) *ClientAuthenticator {
	return &ClientAuthenticator{store: st}
}

// Authenticate resolves the application and checks its credentials.
//
// Public applications carry no secret; presenting one anyway is rejected
// because it usually means a misconfigured client leaking a value it thinks
// is secret. Confidential applications must present their secret and it must
// match the stored argon2id hash.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, clientID, clientSecret string) (domain.Application, error) {
	if clientID == "" {
		return domain.Application{}, ErrInvalidClient
	}

	app, err := a.store.Applications().GetApplicationByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Application{}, ErrInvalidClient
	}
	if err != nil {
		return domain.Application{}, err
	}

	if app.IsPublic {
		if clientSecret != "" {
			return domain.Application{}, ErrInvalidClient
		}
		return app, nil
	}

	if clientSecret == "" {
		return domain.Application{}, ErrInvalidClient
	}
	if err := cryptox.VerifySecret(clientSecret, app.SecretHash); err != nil {
		return domain.Application{}, ErrInvalidClient
	}
	return app, nil
}

// AuthenticateConfidential is Authenticate restricted to confidential
// applications. Introspection and revocation use it.
func (a *ClientAuthenticator) AuthenticateConfidential(ctx context.Context, clientID, clientSecret string) (domain.Application, error) {
	app, err := a.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return domain.Application{}, err
	}
	if app.IsPublic {
		return domain.Application{}, ErrConfidentialRequired
	}
	return app, nil
}
