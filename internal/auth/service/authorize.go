package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/kv"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
)

var (
	// ErrInvalidRedirectURI means the redirect_uri is not registered for the
	// application. Never redirect to it.
	ErrInvalidRedirectURI = errors.New("service: redirect_uri not registered")

	// ErrPKCERequired means a public application attempted the code flow
	// without a code challenge.
	ErrPKCERequired = errors.New("service: PKCE is required for public clients")

	// ErrInvalidCodeChallenge covers a malformed challenge or an unsupported
	// method.
	ErrInvalidCodeChallenge = errors.New("service: invalid code challenge")
)

// DefaultAuthorizationCodeTTL bounds how long an issued code can sit before
// the token exchange.
const DefaultAuthorizationCodeTTL = 10 * time.Minute

// authCodeKeyPrefix namespaces authorization codes in the TTL store.
const authCodeKeyPrefix = "authcode:"

// AuthorizeRequest carries the validated-enough parameters of an
// authorization request after the user approved it.
type AuthorizeRequest struct {
	ApplicationID       string
	UserID              string
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
}

// AuthorizeService issues authorization codes after scope validation and
// consent recording. Codes are single-use and live only in the TTL store,
// keyed by fingerprint so a database dump never reveals a live code.
type AuthorizeService struct {
	store   store.Store
	codes   kv.Store
	scopes  *ScopeService
	codeTTL time.Duration
}

func NewAuthorizeService(st store.Store, codes kv.Store, scopes *ScopeService, codeTTL time.Duration) *AuthorizeService {
	if codeTTL <= 0 {
		codeTTL = DefaultAuthorizationCodeTTL
	}
	return &AuthorizeService{store: st, codes: codes, scopes: scopes, codeTTL: codeTTL}
}

// IssueCode validates the request, records consent, and mints a single-use
// authorization code. The returned string is the raw code for the redirect;
// only its fingerprint is stored.
func (s *AuthorizeService) IssueCode(ctx context.Context, req AuthorizeRequest) (string, error) {
	app, err := s.store.Applications().GetApplicationByID(ctx, req.ApplicationID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidClient
	}
	if err != nil {
		return "", err
	}

	if !app.AllowsRedirectURI(req.RedirectURI) {
		return "", ErrInvalidRedirectURI
	}

	challenge, method, err := normalizePKCE(app, req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return "", err
	}

	scopes, err := s.scopes.ValidateScopes(ctx, app, req.Scopes)
	if err != nil {
		return "", err
	}

	if _, err := s.scopes.GetOrUpdateConsent(ctx, req.UserID, app.ID, scopes); err != nil {
		return "", err
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	record := domain.AuthorizationCode{
		ApplicationID:       app.ID,
		UserID:              req.UserID,
		Scopes:              scopes,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		Nonce:               req.Nonce,
		ExpiresAt:           time.Now().UTC().Add(s.codeTTL),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	key := authCodeKeyPrefix + cryptox.FingerprintToken(code)
	if err := s.codes.Set(ctx, key, payload, s.codeTTL); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}

	return code, nil
}

// normalizePKCE applies the endpoint's defaulting rules. A challenge with no
// method means S256. Public applications must send a challenge; confidential
// ones may skip PKCE entirely.
func normalizePKCE(app domain.Application, challenge, method string) (string, string, error) {
	if challenge == "" {
		if method != "" {
			return "", "", fmt.Errorf("%w: code_challenge_method without code_challenge", ErrInvalidCodeChallenge)
		}
		if app.IsPublic {
			return "", "", ErrPKCERequired
		}
		return "", "", nil
	}

	// RFC 7636 bounds the challenge to 43..128 characters.
	if len(challenge) < 43 || len(challenge) > 128 {
		return "", "", fmt.Errorf("%w: challenge length out of range", ErrInvalidCodeChallenge)
	}

	switch method {
	case "":
		return challenge, cryptox.PKCEMethodS256, nil
	case cryptox.PKCEMethodS256, cryptox.PKCEMethodPlain:
		return challenge, method, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported method %q", ErrInvalidCodeChallenge, method)
	}
}
