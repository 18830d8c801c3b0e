package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Dodge100/FairArena-sub008/internal/auth/audit"
	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	kvredis "github.com/Dodge100/FairArena-sub008/internal/auth/kv/drivers/redis"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store/drivers/sqlite"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
	"github.com/Dodge100/FairArena-sub008/pkg/idx"
)

const testIssuer = "https://auth.test"

// testEnv wires the full service stack against an in-memory database and an
// embedded redis, the same shape the application wiring produces.
type testEnv struct {
	store     *sqlite.Store
	codes     *kvredis.Store
	keys      *KeyManager
	scopes    *ScopeService
	authorize *AuthorizeService
	device    *DeviceService
	tokens    *TokenService
	verifier  *VerifierService
	clients   *ClientAuthenticator
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestKV(t *testing.T) *kvredis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return kvredis.NewFromClient(client, "auth")
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st := newTestStore(t)
	codes := newTestKV(t)

	keys := NewKeyManager(st, "")
	_, err := keys.Rotate(ctx)
	require.NoError(t, err)

	auditor := audit.New(nil)
	scopes := NewScopeService(st, auditor)
	device := NewDeviceService(st, codes, scopes, auditor, testIssuer+"/device", 10*time.Minute, 5)
	tokens := NewTokenService(st, codes, keys, device, auditor, TokenConfig{Issuer: testIssuer})

	return &testEnv{
		store:     st,
		codes:     codes,
		keys:      keys,
		scopes:    scopes,
		authorize: NewAuthorizeService(st, codes, scopes, 10*time.Minute),
		device:    device,
		tokens:    tokens,
		verifier:  NewVerifierService(st, keys, testIssuer),
		clients:   NewClientAuthenticator(st),
	}
}

func (e *testEnv) seedPublicApp(t *testing.T, scopes ...string) domain.Application {
	t.Helper()
	app := domain.Application{
		ID:            idx.New().String(),
		Name:          "Test Public App",
		IsPublic:      true,
		AllowedScopes: scopes,
		RedirectURIs:  []string{"https://app.test/callback"},
	}
	require.NoError(t, e.store.Applications().CreateApplication(context.Background(), app))
	return app
}

func (e *testEnv) seedConfidentialApp(t *testing.T, scopes ...string) (domain.Application, string) {
	t.Helper()
	secret := "secret-" + idx.New().String()
	hash, err := cryptox.HashSecret(secret)
	require.NoError(t, err)

	app := domain.Application{
		ID:            idx.New().String(),
		Name:          "Test Confidential App",
		SecretHash:    hash,
		AllowedScopes: scopes,
		RedirectURIs:  []string{"https://app.test/callback"},
	}
	require.NoError(t, e.store.Applications().CreateApplication(context.Background(), app))
	return app, secret
}

func (e *testEnv) seedUser(t *testing.T) domain.User {
	t.Helper()
	user := domain.User{
		ID:            idx.New().String(),
		Name:          "Ada Lovelace",
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
		Email:         "ada@example.com",
		EmailVerified: true,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), user))
	return user
}
