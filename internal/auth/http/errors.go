package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Dodge100/FairArena-sub008/pkg/httpx"
)

// OAuth2 error codes per RFC 6749 and RFC 8628.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeServerError          = "server_error"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeExpiredToken         = "expired_token"
)

// OAuth2Error is a standard OAuth2 error response per RFC 6749. It
// implements the error interface and knows how to write itself as an HTTP
// response.
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g. "invalid_request").
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this OAuth2Error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// WithDescription returns a copy carrying a request-specific description.
func (e *OAuth2Error) WithDescription(desc string) *OAuth2Error {
	out := *e
	out.Description = desc
	return &out
}

var (
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidClient = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "client authentication failed",
	}

	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the provided grant is invalid, expired, or already used",
	}

	ErrUnauthorizedClient = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnauthorizedClient,
		Description: "the client is not authorized to use this grant type",
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "the grant type is not supported",
	}

	ErrInvalidScope = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "one or more requested scopes are invalid",
	}

	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an internal error occurred",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is invalid or expired",
	}

	ErrAccessDenied = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAccessDenied,
		Description: "the user denied the authorization request",
	}

	ErrAuthorizationPending = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAuthorizationPending,
		Description: "the user has not yet completed authorization",
	}

	ErrSlowDown = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeSlowDown,
		Description: "polling too frequently, increase the interval",
	}

	ErrExpiredToken = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeExpiredToken,
		Description: "the device code has expired",
	}

	ErrInvalidContentType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content type must be application/x-www-form-urlencoded",
	}

	ErrInvalidFormBody = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "could not parse form body",
	}
)
