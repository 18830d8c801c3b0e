package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyPKCE(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	t.Run("s256 match", func(t *testing.T) {
		require.True(t, VerifyPKCE(verifier, challenge, PKCEMethodS256))
	})

	t.Run("s256 mismatch", func(t *testing.T) {
		require.False(t, VerifyPKCE("wrong-verifier-wrong-verifier-wrong-verifier", challenge, PKCEMethodS256))
	})

	t.Run("plain match", func(t *testing.T) {
		require.True(t, VerifyPKCE(verifier, verifier, PKCEMethodPlain))
	})

	t.Run("plain mismatch", func(t *testing.T) {
		require.False(t, VerifyPKCE(verifier, challenge, PKCEMethodPlain))
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		// No fallback to plain: even a value that would match plain must fail
		// under an unrecognized method.
		require.False(t, VerifyPKCE(verifier, verifier, "S512"))
		require.False(t, VerifyPKCE(verifier, verifier, ""))
	})

	t.Run("empty inputs rejected", func(t *testing.T) {
		require.False(t, VerifyPKCE("", challenge, PKCEMethodS256))
		require.False(t, VerifyPKCE(verifier, "", PKCEMethodS256))
	})
}
