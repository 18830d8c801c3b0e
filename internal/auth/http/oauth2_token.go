package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// GrantTypeDeviceCode is the RFC 8628 grant type URN.
const GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// TokenHandler serves POST /oauth/token.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
	ClientAuth   *service.ClientAuthenticator
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		ErrInvalidFormBody.WriteError(w)
		return
	}

	app, oauthErr := h.authenticateClient(r, r.Form)
	if oauthErr != nil {
		oauthErr.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, app, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, app, r.Form)
	case "client_credentials":
		h.handleClientCredentialsGrant(w, r, app, r.Form)
	case GrantTypeDeviceCode:
		h.handleDeviceCodeGrant(w, r, app, r.Form)
	default:
		ErrUnsupportedGrantType.WriteError(w)
	}
}

// authenticateClient resolves credentials from the Basic header or the form
// body. The header wins when both are present.
func (h *TokenHandler) authenticateClient(r *http.Request, form url.Values) (domain.Application, *OAuth2Error) {
	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")

	if header := r.Header.Get("Authorization"); header != "" && strings.HasPrefix(header, "Basic ") {
		id, secret, ok := httpx.ParseBasicAuth(header)
		if !ok {
			return domain.Application{}, ErrInvalidClient
		}
		clientID, clientSecret = id, secret
	}

	app, err := h.ClientAuth.Authenticate(r.Context(), clientID, clientSecret)
	if err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			return domain.Application{}, ErrInvalidClient
		}
		slogx.FromContext(r.Context()).ErrorContext(r.Context(), "client authentication failed", "error", err)
		return domain.Application{}, ErrServerError
	}
	return app, nil
}

func (h *TokenHandler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, app domain.Application, form url.Values) {
	ctx := r.Context()

	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))

	if code == "" || redirectURI == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.TokenService.ExchangeAuthorizationCode(ctx, app, code, redirectURI, codeVerifier)
	if err != nil {
		writeGrantError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, app domain.Application, form url.Values) {
	ctx := r.Context()

	refresh := form.Get("refresh_token")
	if refresh == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.TokenService.ExchangeRefreshToken(ctx, app, refresh)
	if err != nil {
		writeGrantError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *TokenHandler) handleClientCredentialsGrant(w http.ResponseWriter, r *http.Request, app domain.Application, form url.Values) {
	ctx := r.Context()

	requested := httpx.ParseSpaceDelimitedFields(strings.TrimSpace(form.Get("scope")))

	resp, err := h.TokenService.ExchangeClientCredentials(ctx, app, requested)
	if err != nil {
		writeGrantError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *TokenHandler) handleDeviceCodeGrant(w http.ResponseWriter, r *http.Request, app domain.Application, form url.Values) {
	ctx := r.Context()

	deviceCode := strings.TrimSpace(form.Get("device_code"))
	if deviceCode == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.TokenService.ExchangeDeviceCode(ctx, app, deviceCode)
	if err != nil {
		writeGrantError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeGrantError maps service errors onto the canonical OAuth2 error codes.
// Anything unmapped is a server error and gets logged with detail the client
// never sees.
func writeGrantError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrUnauthorizedClient):
		ErrUnauthorizedClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		ErrInvalidScope.WithDescription(err.Error()).WriteError(w)
	case errors.Is(err, service.ErrAuthorizationPending):
		ErrAuthorizationPending.WriteError(w)
	case errors.Is(err, service.ErrSlowDown):
		ErrSlowDown.WriteError(w)
	case errors.Is(err, service.ErrDeviceAccessDenied):
		ErrAccessDenied.WriteError(w)
	case errors.Is(err, service.ErrDeviceCodeExpired):
		ErrExpiredToken.WriteError(w)
	default:
		slogx.FromContext(ctx).ErrorContext(ctx, "token grant failed", "error", err)
		ErrServerError.WriteError(w)
	}
}
