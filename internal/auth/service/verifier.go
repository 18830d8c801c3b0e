package service

import (
	"context"

	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// IntrospectionResult is the RFC 7662 response shape. Only Active is present
// when the token is not valid; everything else is omitted.
type IntrospectionResult struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Sub      string `json:"sub,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
	JTI      string `json:"jti,omitempty"`
	TokenUse string `json:"token_use,omitempty"`
}

// VerifierService validates access tokens. Signature validity is necessary
// but not sufficient: a revoked jti kills an otherwise valid token.
type VerifierService struct {
	store  store.Store
	keys   *KeyManager
	issuer string
}

func NewVerifierService(st store.Store, keys *KeyManager, issuer string) *VerifierService {
	return &VerifierService{store: st, keys: keys, issuer: issuer}
}

// VerifyAccessToken returns the claims of a live token, or nil. Every
// failure mode collapses to nil for the caller; the distinctions only reach
// the logs.
func (v *VerifierService) VerifyAccessToken(ctx context.Context, token string) (*jwtx.AccessClaims, error) {
	if token == "" {
		return nil, nil
	}

	verifier := jwtx.NewRS256Verifier(v.keys.KeySet(), v.issuer)
	claims, err := verifier.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).DebugContext(ctx, "token verification failed", "error", err)
		return nil, nil
	}

	revoked, err := v.store.RevokedTokens().IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		// A store failure is not "token invalid"; propagate it so callers
		// do not cache a false negative.
		return nil, err
	}
	if revoked {
		slogx.FromContext(ctx).DebugContext(ctx, "token revoked", "jti", claims.ID)
		return nil, nil
	}

	return claims, nil
}

// Introspect maps verification onto the RFC 7662 shape. Anything short of a
// live token is a bare {active: false}.
func (v *VerifierService) Introspect(ctx context.Context, token string) (IntrospectionResult, error) {
	claims, err := v.VerifyAccessToken(ctx, token)
	if err != nil {
		return IntrospectionResult{}, err
	}
	if claims == nil {
		return IntrospectionResult{Active: false}, nil
	}

	out := IntrospectionResult{
		Active:   true,
		Scope:    claims.Scope,
		ClientID: claims.ClientID,
		Sub:      claims.Subject,
		JTI:      claims.ID,
		TokenUse: "access_token",
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out, nil
}
