package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
)

type claimsCtxKey struct{}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// RequireUser rejects requests without a live user-context access token and
// stashes the verified claims in the request context.
func RequireUser(verifier *service.VerifierService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.VerifyAccessToken(r.Context(), bearerToken(r))
			if err != nil {
				ErrServerError.WriteError(w)
				return
			}
			if claims == nil || claims.Subject == "" {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				ErrInvalidToken.WriteError(w)
				return
			}
			ctx := context.WithValue(r.Context(), claimsCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stashed by RequireUser, or nil.
func ClaimsFromContext(ctx context.Context) *jwtx.AccessClaims {
	claims, _ := ctx.Value(claimsCtxKey{}).(*jwtx.AccessClaims)
	return claims
}
