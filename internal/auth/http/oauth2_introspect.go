package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// IntrospectHandler serves POST /oauth/introspect per RFC 7662. Restricted
// to confidential clients; public clients get invalid_client rather than an
// oracle.
type IntrospectHandler struct {
	Verifier   *service.VerifierService
	ClientAuth *service.ClientAuthenticator
}

func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.ClientAuth.AuthenticateConfidential(ctx, clientID, clientSecret); err != nil {
		if errors.Is(err, service.ErrInvalidClient) || errors.Is(err, service.ErrConfidentialRequired) {
			ErrInvalidClient.WriteError(w)
			return
		}
		slogx.FromContext(ctx).ErrorContext(ctx, "introspection client auth failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	result, err := h.Verifier.Introspect(ctx, r.Form.Get("token"))
	if err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "introspection failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, result)
}
