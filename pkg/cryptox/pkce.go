package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE code challenge methods per RFC 7636.
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// VerifyPKCE checks a code_verifier against the code_challenge recorded when
// the authorization was created. Only S256 and plain are accepted; any other
// method value fails closed rather than defaulting to plain. All comparisons
// are constant time so the challenge cannot be probed byte-by-byte.
func VerifyPKCE(verifier, challenge, method string) bool {
	if verifier == "" || challenge == "" {
		return false
	}

	switch method {
	case PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
