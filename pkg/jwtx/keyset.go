package jwtx

import (
	"crypto/rsa"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds the public verification keys in memory. It is thread-safe so
// the JWKS handler and the token verifier can share one instance. Rotation
// swaps the whole set via Reset rather than mutating entries in place.
type KeySet struct {
	mu    sync.RWMutex
	jks   JWKS
	pub   map[string]*rsa.PublicKey
	order []string // insertion order, so verification tries keys deterministically
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]*rsa.PublicKey)}
}

// Add registers a public key under its kid.
func (k *KeySet) Add(j JWK) error {
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.pub[j.Kid]; !exists {
		k.order = append(k.order, j.Kid)
		k.jks.Keys = append(k.jks.Keys, j)
	}
	k.pub[j.Kid] = pub
	return nil
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// All returns every registered public key in insertion order. Verification
// falls back to trying each of these when a token carries an unknown kid.
func (k *KeySet) All() []*rsa.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	keys := make([]*rsa.PublicKey, 0, len(k.order))
	for _, kid := range k.order {
		keys = append(keys, k.pub[kid])
	}
	return keys
}

// PublicJWKS returns a snapshot of the KeySet's JWKS for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := JWKS{Keys: make([]JWK, len(k.jks.Keys))}
	copy(out.Keys, k.jks.Keys)
	return out
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// Reset replaces all keys. Used when the active key set changes on rotation.
func (k *KeySet) Reset(jwks []JWK) error {
	newMap := make(map[string]*rsa.PublicKey, len(jwks))
	newOrder := make([]string, 0, len(jwks))
	for _, j := range jwks {
		pub, err := j.PublicKey()
		if err != nil {
			return err
		}
		if _, dup := newMap[j.Kid]; !dup {
			newOrder = append(newOrder, j.Kid)
		}
		newMap[j.Kid] = pub
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub = newMap
	k.order = newOrder
	k.jks = JWKS{Keys: jwks}
	return nil
}
