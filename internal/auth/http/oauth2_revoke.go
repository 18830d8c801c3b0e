package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// RevokeHandler serves POST /oauth/revoke per RFC 7009. Always succeeds from
// the caller's point of view so token validity cannot be probed; only client
// authentication failures are surfaced.
type RevokeHandler struct {
	TokenService *service.TokenService
	ClientAuth   *service.ClientAuthenticator
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID := strings.TrimSpace(r.Form.Get("client_id"))
	clientSecret := r.Form.Get("client_secret")
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Basic ") {
		id, secret, ok := httpx.ParseBasicAuth(header)
		if !ok {
			ErrInvalidClient.WriteError(w)
			return
		}
		clientID, clientSecret = id, secret
	}

	app, err := h.ClientAuth.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			ErrInvalidClient.WriteError(w)
			return
		}
		slogx.FromContext(ctx).ErrorContext(ctx, "revocation client auth failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	if err := h.TokenService.Revoke(ctx, app, r.Form.Get("token")); err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "revocation failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}
