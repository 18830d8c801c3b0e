package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
	"github.com/Dodge100/FairArena-sub008/pkg/idx"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// ErrNoSigningKey means no usable signing key exists anywhere: the database
// holds none and no bootstrap key was supplied. The server cannot issue
// tokens in that state, so startup treats this as fatal.
var ErrNoSigningKey = errors.New("service: no signing key available")

// rsaKeyBits is the RSA modulus size for generated signing keys.
const rsaKeyBits = 2048

// KeyManager owns the signing key lifecycle: loading the primary key at
// startup, generating and rotating keys, and keeping the in-memory KeySet of
// verification keys in sync with the database.
type KeyManager struct {
	store store.Store

	// bootstrapPEM is an RSA private key PEM from the environment, used only
	// when the database has no keys at all (first boot).
	bootstrapPEM string

	mu     sync.RWMutex
	signer *jwtx.RS256Signer
	keys   *jwtx.KeySet
}

// NewKeyManager wires a KeyManager. Call Load before first use.
func NewKeyManager(st store.Store, bootstrapPEM string) *KeyManager {
	return &KeyManager{
		store:        st,
		bootstrapPEM: bootstrapPEM,
		keys:         jwtx.NewKeySet(),
	}
}

// Load resolves the primary signing key. Resolution order:
//
//  1. the primary+active key already in the database
//  2. a bootstrap key from the environment, which gets persisted as primary
//  3. nothing, which is ErrNoSigningKey
//
// Generating a key silently is deliberately not done here: an operator who
// fat-fingers the database DSN should get a hard failure, not a server that
// quietly issues tokens nobody else can verify.
func (m *KeyManager) Load(ctx context.Context) error {
	primary, err := m.store.SigningKeys().GetPrimarySigningKey(ctx)
	if errors.Is(err, store.ErrNotFound) {
		primary, err = m.seedFromBootstrap(ctx)
	}
	if err != nil {
		return err
	}

	signer, err := jwtx.NewRS256Signer(primary.Kid, []byte(primary.PrivateKeyPEM))
	if err != nil {
		return fmt.Errorf("load primary key %s: %w", primary.Kid, err)
	}

	m.mu.Lock()
	m.signer = signer
	m.mu.Unlock()

	return m.refreshKeySet(ctx)
}

// seedFromBootstrap persists the environment-supplied key as the primary.
// Only runs when the signing_keys table is empty of primaries.
func (m *KeyManager) seedFromBootstrap(ctx context.Context) (domain.SigningKey, error) {
	if m.bootstrapPEM == "" {
		return domain.SigningKey{}, ErrNoSigningKey
	}

	privatePEM := cryptox.NormalizePEM(m.bootstrapPEM)
	priv, err := cryptox.ParseRSAPrivateKeyPEM([]byte(privatePEM))
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("bootstrap signing key: %w", err)
	}
	if priv.N.BitLen() < rsaKeyBits {
		return domain.SigningKey{}, fmt.Errorf("bootstrap signing key: modulus below %d bits", rsaKeyBits)
	}

	publicPEM, err := cryptox.EncodeRSAPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("bootstrap signing key: %w", err)
	}

	key := domain.SigningKey{
		ID:            idx.New().String(),
		Kid:           idx.New().String(),
		Algorithm:     "RS256",
		PublicKeyPEM:  string(publicPEM),
		PrivateKeyPEM: privatePEM,
		IsPrimary:     true,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.SigningKeys().CreateSigningKey(ctx, key); err != nil {
		return domain.SigningKey{}, fmt.Errorf("persist bootstrap key: %w", err)
	}

	slogx.FromContext(ctx).InfoContext(ctx, "seeded signing key from environment", "kid", key.Kid)
	return key, nil
}

// GenerateKey creates a fresh active (non-primary) RSA key pair and persists
// it. The new key verifies immediately but does not sign until promoted by
// Rotate.
func (m *KeyManager) GenerateKey(ctx context.Context) (domain.SigningKey, error) {
	privatePEM, publicPEM, err := cryptox.GenerateRSAKeyPair(rsaKeyBits)
	if err != nil {
		return domain.SigningKey{}, err
	}

	key := domain.SigningKey{
		ID:            idx.New().String(),
		Kid:           idx.New().String(),
		Algorithm:     "RS256",
		PublicKeyPEM:  string(publicPEM),
		PrivateKeyPEM: string(privatePEM),
		IsPrimary:     false,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.SigningKeys().CreateSigningKey(ctx, key); err != nil {
		return domain.SigningKey{}, err
	}

	if err := m.refreshKeySet(ctx); err != nil {
		return domain.SigningKey{}, err
	}
	return key, nil
}

// Rotate generates a new key and promotes it to primary in one transaction.
// Old keys stay active, so tokens they signed keep verifying until they age
// out and an operator deactivates them.
func (m *KeyManager) Rotate(ctx context.Context) (domain.SigningKey, error) {
	privatePEM, publicPEM, err := cryptox.GenerateRSAKeyPair(rsaKeyBits)
	if err != nil {
		return domain.SigningKey{}, err
	}

	key := domain.SigningKey{
		ID:            idx.New().String(),
		Kid:           idx.New().String(),
		Algorithm:     "RS256",
		PublicKeyPEM:  string(publicPEM),
		PrivateKeyPEM: string(privatePEM),
		IsPrimary:     true,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}

	err = m.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SigningKeys().DemotePrimarySigningKeys(ctx); err != nil {
			return err
		}
		return tx.SigningKeys().CreateSigningKey(ctx, key)
	})
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("rotate signing key: %w", err)
	}

	signer, err := jwtx.NewRS256Signer(key.Kid, []byte(key.PrivateKeyPEM))
	if err != nil {
		return domain.SigningKey{}, err
	}

	m.mu.Lock()
	m.signer = signer
	m.mu.Unlock()

	if err := m.refreshKeySet(ctx); err != nil {
		return domain.SigningKey{}, err
	}

	slogx.FromContext(ctx).InfoContext(ctx, "rotated signing key", "kid", key.Kid)
	return key, nil
}

// Deactivate retires a key from verification. Refuses to touch the current
// signing key.
func (m *KeyManager) Deactivate(ctx context.Context, kid string) error {
	m.mu.RLock()
	signingKid := ""
	if m.signer != nil {
		signingKid = m.signer.KID()
	}
	m.mu.RUnlock()

	if kid == signingKid {
		return fmt.Errorf("service: cannot deactivate the primary signing key %s", kid)
	}

	if err := m.store.SigningKeys().DeactivateSigningKey(ctx, kid); err != nil {
		return err
	}
	return m.refreshKeySet(ctx)
}

// Signer returns the current primary signer. Nil before Load succeeds.
func (m *KeyManager) Signer() *jwtx.RS256Signer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signer
}

// KeySet returns the shared verification key set. The same instance backs
// the JWKS endpoint and the token verifier.
func (m *KeyManager) KeySet() *jwtx.KeySet {
	return m.keys
}

// refreshKeySet rebuilds the in-memory verification set from every active
// key in the database.
func (m *KeyManager) refreshKeySet(ctx context.Context) error {
	active, err := m.store.SigningKeys().ListActiveSigningKeys(ctx)
	if err != nil {
		return fmt.Errorf("list active signing keys: %w", err)
	}

	jwks := make([]jwtx.JWK, 0, len(active))
	for _, k := range active {
		pub, err := cryptox.ParseRSAPublicKeyPEM([]byte(k.PublicKeyPEM))
		if err != nil {
			return fmt.Errorf("parse public key %s: %w", k.Kid, err)
		}
		jwks = append(jwks, jwtx.NewRSAJWK(k.Kid, "sig", k.Algorithm, pub))
	}

	return m.keys.Reset(jwks)
}
