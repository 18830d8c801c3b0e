package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
)

func newTestSigner(t *testing.T, kid string) *RS256Signer {
	t.Helper()
	privPEM, _, err := cryptox.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	signer, err := NewRS256Signer(kid, privPEM)
	require.NoError(t, err)
	return signer
}

func newKeySetFor(t *testing.T, signers ...*RS256Signer) *KeySet {
	t.Helper()
	ks := NewKeySet()
	for _, s := range signers {
		require.NoError(t, ks.Add(s.PublicJWK()))
	}
	return ks
}

func TestSignAndVerify(t *testing.T) {
	signer := newTestSigner(t, "key-1")
	keys := newKeySetFor(t, signer)
	verifier := NewRS256Verifier(keys, "https://auth.test")

	claims := NewAccessClaims("user-1", "app-1", "openid profile", 15*time.Minute, "https://auth.test", []string{"app-1"}, time.Now().UTC())

	token, err := signer.Sign(claims, TypeAccessToken)
	require.NoError(t, err)

	t.Run("roundtrip", func(t *testing.T) {
		got, err := verifier.Verify(token)
		require.NoError(t, err)
		require.Equal(t, "user-1", got.Subject)
		require.Equal(t, "app-1", got.ClientID)
		require.Equal(t, "openid profile", got.Scope)
		require.NotEmpty(t, got.ID)
	})

	t.Run("header carries kid and typ", func(t *testing.T) {
		parsed, _, err := jwt.NewParser().ParseUnverified(token, &AccessClaims{})
		require.NoError(t, err)
		require.Equal(t, "key-1", parsed.Header["kid"])
		require.Equal(t, TypeAccessToken, parsed.Header["typ"])
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		other := NewRS256Verifier(keys, "https://other.test")
		_, err := other.Verify(token)
		require.ErrorIs(t, err, ErrIssuer)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		stranger := newTestSigner(t, "stranger")
		strangerKeys := newKeySetFor(t, stranger)
		v := NewRS256Verifier(strangerKeys, "https://auth.test")
		_, err := v.Verify(token)
		require.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := verifier.Verify("not.a.jwt")
		require.Error(t, err)
	})
}

func TestVerifyAcrossRotation(t *testing.T) {
	oldSigner := newTestSigner(t, "key-old")
	newSigner := newTestSigner(t, "key-new")

	claims := NewAccessClaims("user-1", "app-1", "openid", 15*time.Minute, "https://auth.test", []string{"app-1"}, time.Now().UTC())
	oldToken, err := oldSigner.Sign(claims, TypeAccessToken)
	require.NoError(t, err)

	// After rotation both keys stay in the set; tokens signed by the old
	// primary must keep verifying.
	keys := newKeySetFor(t, newSigner, oldSigner)
	verifier := NewRS256Verifier(keys, "https://auth.test")

	got, err := verifier.Verify(oldToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)

	t.Run("retired key stops verifying", func(t *testing.T) {
		require.NoError(t, keys.Reset([]JWK{newSigner.PublicJWK()}))
		_, err := verifier.Verify(oldToken)
		require.Error(t, err)
	})
}

func TestExpiredToken(t *testing.T) {
	signer := newTestSigner(t, "key-1")
	keys := newKeySetFor(t, signer)
	verifier := NewRS256Verifier(keys, "")

	claims := NewAccessClaims("user-1", "app-1", "openid", time.Minute, "", nil, time.Now().UTC().Add(-time.Hour))
	token, err := signer.Sign(claims, TypeAccessToken)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestJTIUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		jti := NewJTI()
		_, dup := seen[jti]
		require.False(t, dup, "jti %q generated twice", jti)
		seen[jti] = struct{}{}
	}
}
