package jwtx

import (
	"crypto/rsa"
	"errors"

	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// JWT "typ" header values. Access tokens carry the RFC 9068 media type so
// resource servers can reject ID tokens presented as access tokens.
const (
	TypeJWT         = "JWT"
	TypeAccessToken = "at+jwt"
)

// RS256Signer signs JWTs with an RSA private key. The kid is embedded in
// every token header so verifiers can pick the right key during rotation.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
}

// NewRS256Signer loads an RSA private key from PEM bytes.
func NewRS256Signer(kid string, pemKey []byte) (*RS256Signer, error) {
	key, err := cryptox.ParseRSAPrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}
	if kid == "" {
		return nil, errors.New("jwtx: signer requires a kid")
	}
	return &RS256Signer{kid: kid, key: key}, nil
}

func (s *RS256Signer) Alg() string { return jwt.SigningMethodRS256.Alg() }
func (s *RS256Signer) KID() string { return s.kid }

// Sign turns claims into a signed JWT string with the given typ header.
func (s *RS256Signer) Sign(claims jwt.Claims, typ string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	if typ != "" {
		t.Header["typ"] = typ
	}
	return t.SignedString(s.key)
}

// PublicJWK returns a JWK for inclusion in a JWKS. This is what gets
// published so others can verify issued tokens.
func (s *RS256Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, "sig", s.Alg(), &s.key.PublicKey)
}
