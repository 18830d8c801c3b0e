package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// AuthorizeHandler serves POST /oauth/authorize. The user arrives already
// authenticated (RequireUser); a successful call records consent and returns
// the authorization code for the redirect the front end performs.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
}

type authorizeResponse struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := ClaimsFromContext(ctx)
	if claims == nil {
		ErrInvalidToken.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID := strings.TrimSpace(r.Form.Get("client_id"))
	redirectURI := strings.TrimSpace(r.Form.Get("redirect_uri"))
	scope := strings.TrimSpace(r.Form.Get("scope"))
	if clientID == "" || redirectURI == "" || scope == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	code, err := h.AuthorizeService.IssueCode(ctx, service.AuthorizeRequest{
		ApplicationID:       clientID,
		UserID:              claims.Subject,
		Scopes:              httpx.ParseSpaceDelimitedFields(scope),
		RedirectURI:         redirectURI,
		CodeChallenge:       strings.TrimSpace(r.Form.Get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(r.Form.Get("code_challenge_method")),
		Nonce:               strings.TrimSpace(r.Form.Get("nonce")),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidClient):
			ErrInvalidClient.WriteError(w)
		case errors.Is(err, service.ErrInvalidRedirectURI):
			ErrInvalidRequest.WithDescription("redirect_uri is not registered").WriteError(w)
		case errors.Is(err, service.ErrPKCERequired):
			ErrInvalidRequest.WithDescription("public clients must use PKCE").WriteError(w)
		case errors.Is(err, service.ErrInvalidCodeChallenge):
			ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		case errors.Is(err, service.ErrInvalidScope):
			ErrInvalidScope.WithDescription(err.Error()).WriteError(w)
		default:
			slogx.FromContext(ctx).ErrorContext(ctx, "authorize failed", "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authorizeResponse{
		Code:  code,
		State: strings.TrimSpace(r.Form.Get("state")),
	})
}
