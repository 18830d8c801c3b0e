package http

import (
	"encoding/json"
	"net/http"

	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
)

// JWKSHandler serves GET /.well-known/jwks.json: the public halves of every
// active signing key.
type JWKSHandler struct {
	Keys *jwtx.KeySet
}

func (h *JWKSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// A short cache keeps verifier fleets from hammering the endpoint while
	// still picking up rotations quickly. Written by hand because
	// httpx.WriteJSON stamps no-store.
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.Keys.PublicJWKS())
}
