package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// RS256Verifier validates JWTs against a KeySet of active public keys. A
// token signed by any key still in the set verifies, which is what keeps
// outstanding tokens alive across key rotation.
type RS256Verifier struct {
	keys   *KeySet
	issuer string
}

// NewRS256Verifier creates a verifier using a KeySet of RSA public keys.
func NewRS256Verifier(keys *KeySet, issuer string) *RS256Verifier {
	return &RS256Verifier{keys: keys, issuer: issuer}
}

// Verify validates the JWT string and returns its parsed claims. The kid
// header selects the verification key; when the kid is missing or unknown
// every active key is tried in order and the first structural success wins.
func (v *RS256Verifier) Verify(tokenStr string) (*AccessClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" {
			if pub, err := v.keys.Get(kid); err == nil {
				return pub, nil
			}
		}

		// Unknown or absent kid: fall through to trying every active key.
		all := v.keys.All()
		if len(all) == 0 {
			return nil, ErrNoKey
		}
		set := jwt.VerificationKeySet{}
		for _, pub := range all {
			set.Keys = append(set.Keys, pub)
		}
		return set, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return nil, err
	}

	return claims, nil
}
