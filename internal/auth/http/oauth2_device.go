package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// DeviceAuthorizationHandler serves POST /oauth/device/authorize, the RFC 8628
// device authorization endpoint.
type DeviceAuthorizationHandler struct {
	DeviceService *service.DeviceService
	ClientAuth    *service.ClientAuthenticator
}

type deviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int    `json:"interval"`
}

func (h *DeviceAuthorizationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
		slogx.FromContext(ctx).ErrorContext(ctx, "device client auth failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	scopes := httpx.ParseSpaceDelimitedFields(strings.TrimSpace(r.Form.Get("scope")))

	result, err := h.DeviceService.Authorize(ctx, app.ID, scopes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidScope):
			ErrInvalidScope.WithDescription(err.Error()).WriteError(w)
		default:
			slogx.FromContext(ctx).ErrorContext(ctx, "device authorization failed", "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, deviceAuthorizationResponse{
		DeviceCode:              result.DeviceCode,
		UserCode:                result.UserCode,
		VerificationURI:         result.VerificationURI,
		VerificationURIComplete: result.VerificationURIComplete,
		ExpiresIn:               result.ExpiresIn,
		Interval:                result.Interval,
	})
}

// DeviceVerificationHandler backs the user-facing verification step.
// GET resolves a user code to the requesting application and scopes;
// POST records the user's approve/deny decision. Both require a signed-in
// user via RequireUser.
type DeviceVerificationHandler struct {
	DeviceService *service.DeviceService
}

func (h *DeviceVerificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.lookup(w, r)
	case http.MethodPost:
		h.decide(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DeviceVerificationHandler) lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userCode := strings.TrimSpace(r.URL.Query().Get("user_code"))
	if userCode == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	record, err := h.DeviceService.Lookup(ctx, userCode)
	if err != nil {
		if errors.Is(err, service.ErrUserCodeNotFound) {
			ErrInvalidRequest.WithDescription("user code not found or expired").WriteError(w)
			return
		}
		slogx.FromContext(ctx).ErrorContext(ctx, "device lookup failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"application_id": record.ApplicationID,
		"scopes":         record.Scopes,
		"expires_at":     record.ExpiresAt,
	})
}

func (h *DeviceVerificationHandler) decide(w http.ResponseWriter, r *http.Request) {
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

	userCode := strings.TrimSpace(r.Form.Get("user_code"))
	action := strings.TrimSpace(r.Form.Get("action"))
	if userCode == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	var err error
	switch action {
	case "approve":
		err = h.DeviceService.Approve(ctx, userCode, claims.Subject)
	case "deny":
		err = h.DeviceService.Deny(ctx, userCode, claims.Subject)
	default:
		ErrInvalidRequest.WithDescription("action must be approve or deny").WriteError(w)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserCodeNotFound):
			ErrInvalidRequest.WithDescription("user code not found or expired").WriteError(w)
		case errors.Is(err, service.ErrDeviceCodeConsumed):
			ErrInvalidRequest.WithDescription("this request was already decided").WriteError(w)
		case errors.Is(err, service.ErrInvalidScope):
			ErrInvalidScope.WithDescription(err.Error()).WriteError(w)
		default:
			slogx.FromContext(ctx).ErrorContext(ctx, "device decision failed", "error", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
