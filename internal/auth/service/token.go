package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/audit"
	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/kv"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
	"github.com/Dodge100/FairArena-sub008/pkg/idx"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidGrant covers every client-correctable grant failure: bad
	// code, bad verifier, expired or replayed refresh token. One error so
	// responses do not reveal which check failed.
	ErrInvalidGrant = errors.New("service: invalid grant")

	// ErrUnauthorizedClient means the application may not use the grant type
	// it asked for.
	ErrUnauthorizedClient = errors.New("service: client not authorized for this grant")
)

// TokenConfig carries issuance parameters.
type TokenConfig struct {
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IDTokenTTL      time.Duration
}

func (c *TokenConfig) applyDefaults() {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = jwtx.DefaultAccessTokenTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = jwtx.DefaultRefreshTokenTTL
	}
	if c.IDTokenTTL <= 0 {
		c.IDTokenTTL = jwtx.DefaultIDTokenTTL
	}
}

// TokenService implements the token endpoint's four grant exchanges plus
// token revocation. Every issuance goes through the KeyManager's current
// primary signer; no key means no tokens.
type TokenService struct {
	store   store.Store
	codes   kv.Store
	keys    *KeyManager
	device  *DeviceService
	auditor *audit.Auditor
	cfg     TokenConfig
}

func NewTokenService(st store.Store, codes kv.Store, keys *KeyManager, device *DeviceService, auditor *audit.Auditor, cfg TokenConfig) *TokenService {
	cfg.applyDefaults()
	return &TokenService{store: st, codes: codes, keys: keys, device: device, auditor: auditor, cfg: cfg}
}

// ExchangeAuthorizationCode redeems a single-use authorization code. The
// code is taken from the store in one atomic step before any validation
// runs, so a rejected exchange burns it just like a successful one and
// concurrent exchanges of the same code resolve to a single winner.
func (t *TokenService) ExchangeAuthorizationCode(ctx context.Context, app domain.Application, code, redirectURI, codeVerifier string) (domain.TokenResponse, error) {
	if code == "" {
		return domain.TokenResponse{}, ErrInvalidGrant
	}

	key := authCodeKeyPrefix + cryptox.FingerprintToken(code)
	payload, err := t.codes.GetDel(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return domain.TokenResponse{}, ErrInvalidGrant
	}
	if err != nil {
		return domain.TokenResponse{}, err
	}

	var record domain.AuthorizationCode
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.TokenResponse{}, err
	}

	if time.Now().UTC().After(record.ExpiresAt) {
		return domain.TokenResponse{}, ErrInvalidGrant
	}
	if record.ApplicationID != app.ID {
		t.auditor.Record(ctx, audit.Event{
			Type:          audit.EventAuthCodeRejected,
			ApplicationID: app.ID,
			Metadata:      map[string]any{"reason": "application mismatch"},
		})
		return domain.TokenResponse{}, ErrInvalidGrant
	}
	if record.RedirectURI != redirectURI {
		return domain.TokenResponse{}, ErrInvalidGrant
	}

	if record.CodeChallenge != "" {
		if !cryptox.VerifyPKCE(codeVerifier, record.CodeChallenge, record.CodeChallengeMethod) {
			t.auditor.Record(ctx, audit.Event{
				Type:          audit.EventAuthCodeRejected,
				ApplicationID: app.ID,
				UserID:        record.UserID,
				Metadata:      map[string]any{"reason": "pkce verification failed"},
			})
			return domain.TokenResponse{}, ErrInvalidGrant
		}
	} else if codeVerifier != "" {
		// A verifier against a challenge-less code means the authorization
		// and exchange disagree about PKCE. Fail rather than guess.
		return domain.TokenResponse{}, ErrInvalidGrant
	}

	resp, err := t.issueTokens(ctx, app, record.UserID, record.Scopes, record.Nonce, true)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	t.auditor.Record(ctx, audit.Event{
		Type:          audit.EventAuthCodeExchanged,
		ApplicationID: app.ID,
		UserID:        record.UserID,
	})
	return resp, nil
}

// ExchangeClientCredentials issues an access token for the application
// itself. No user, so no sub claim, no ID token, and no refresh token; the
// client can always fetch a fresh one with its credentials.
func (t *TokenService) ExchangeClientCredentials(ctx context.Context, app domain.Application, requestedScopes []string) (domain.TokenResponse, error) {
	if app.IsPublic {
		return domain.TokenResponse{}, ErrUnauthorizedClient
	}

	scopes := requestedScopes
	if len(scopes) == 0 {
		scopes = app.AllowedScopes
	}
	for _, name := range scopes {
		if !app.AllowsScope(name) {
			return domain.TokenResponse{}, fmt.Errorf("%w: %s", ErrInvalidScope, name)
		}
	}

	access, _, err := t.signAccessToken("", app.ID, scopes)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	t.auditor.Record(ctx, audit.Event{
		Type:          audit.EventTokenIssued,
		ApplicationID: app.ID,
		Metadata:      map[string]any{"grant": "client_credentials"},
	})

	return domain.TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(t.cfg.AccessTokenTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// ExchangeRefreshToken rotates a refresh token: the old one is marked
// rotated and a replacement is issued atomically. Presenting an
// already-rotated or revoked token is replay and is rejected even if the
// TTL has not elapsed.
func (t *TokenService) ExchangeRefreshToken(ctx context.Context, app domain.Application, refreshToken string) (domain.TokenResponse, error) {
	if refreshToken == "" {
		return domain.TokenResponse{}, ErrInvalidGrant
	}

	hash := cryptox.FingerprintToken(refreshToken)
	now := time.Now().UTC()

	var (
		old  domain.RefreshToken
		resp domain.TokenResponse
	)

	err := t.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		old, err = tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidGrant
		}
		if err != nil {
			return err
		}

		if old.ApplicationID != app.ID {
			return ErrInvalidGrant
		}
		if old.Revoked || now.After(old.ExpiresAt) {
			return ErrInvalidGrant
		}
		if old.RotatedAt != nil {
			t.auditor.Record(ctx, audit.Event{
				Type:          audit.EventRefreshTokenReplay,
				ApplicationID: app.ID,
				UserID:        old.UserID,
			})
			return ErrInvalidGrant
		}

		// The conditional UPDATE is the race guard: if a concurrent exchange
		// rotated this token first, zero rows match and this exchange loses.
		if err := tx.RefreshTokens().MarkRefreshTokenRotated(ctx, old.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		newToken, err := cryptox.GenerateToken(cryptox.TokenSize384)
		if err != nil {
			return err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:            idx.New().String(),
			UserID:        old.UserID,
			ApplicationID: app.ID,
			TokenHash:     cryptox.FingerprintToken(newToken),
			Scopes:        old.Scopes,
			ExpiresAt:     now.Add(t.cfg.RefreshTokenTTL),
		}); err != nil {
			return err
		}

		access, _, err := t.signAccessToken(old.UserID, app.ID, old.Scopes)
		if err != nil {
			return err
		}

		resp = domain.TokenResponse{
			AccessToken:  access,
			TokenType:    "Bearer",
			ExpiresIn:    int64(t.cfg.AccessTokenTTL.Seconds()),
			RefreshToken: newToken,
			Scope:        strings.Join(old.Scopes, " "),
		}
		return nil
	})
	if err != nil {
		return domain.TokenResponse{}, err
	}

	t.auditor.Record(ctx, audit.Event{
		Type:          audit.EventTokenRefreshed,
		ApplicationID: app.ID,
		UserID:        old.UserID,
	})
	return resp, nil
}

// ExchangeDeviceCode is the polling half of the device flow. State handling
// lives in DeviceService.Consume; this turns an authorized record into
// tokens.
func (t *TokenService) ExchangeDeviceCode(ctx context.Context, app domain.Application, deviceCode string) (domain.TokenResponse, error) {
	if deviceCode == "" {
		return domain.TokenResponse{}, ErrInvalidGrant
	}

	record, err := t.device.Consume(ctx, app.ID, deviceCode)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	resp, err := t.issueTokens(ctx, app, record.UserID, record.Scopes, "", true)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	t.auditor.Record(ctx, audit.Event{
		Type:          audit.EventTokenIssued,
		ApplicationID: app.ID,
		UserID:        record.UserID,
		Metadata:      map[string]any{"grant": "device_code"},
	})
	return resp, nil
}

// Revoke handles RFC 7009 revocation. The value may be a refresh token or
// an access token; both are tried. Unknown tokens are a silent success so
// callers cannot probe token validity.
func (t *TokenService) Revoke(ctx context.Context, app domain.Application, token string) error {
	if token == "" {
		return nil
	}

	// Refresh token by fingerprint first; that is the common case.
	hash := cryptox.FingerprintToken(token)
	rt, err := t.store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err == nil {
		if rt.ApplicationID != app.ID {
			return nil
		}
		if err := t.store.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
			return err
		}
		t.auditor.Record(ctx, audit.Event{
			Type:          audit.EventTokenRevoked,
			ApplicationID: app.ID,
			UserID:        rt.UserID,
			Metadata:      map[string]any{"kind": "refresh_token"},
		})
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Otherwise try it as a signed access token and denylist its jti.
	verifier := jwtx.NewRS256Verifier(t.keys.KeySet(), t.cfg.Issuer)
	claims, err := verifier.Verify(token)
	if err != nil {
		// Invalid or foreign token: per RFC 7009 still a success.
		return nil
	}
	if claims.ClientID != app.ID {
		return nil
	}

	exp := time.Now().UTC().Add(t.cfg.AccessTokenTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := t.store.RevokedTokens().AddRevokedToken(ctx, domain.RevokedToken{
		JTI:       claims.ID,
		ExpiresAt: exp,
		RevokedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	t.auditor.Record(ctx, audit.Event{
		Type:          audit.EventTokenRevoked,
		ApplicationID: app.ID,
		UserID:        claims.Subject,
		Metadata:      map[string]any{"kind": "access_token", "jti": claims.ID},
	})
	return nil
}

// issueTokens mints the response for user-context grants: access token,
// refresh token, and an ID token when the grant carries the openid scope.
func (t *TokenService) issueTokens(ctx context.Context, app domain.Application, userID string, scopes []string, nonce string, withRefresh bool) (domain.TokenResponse, error) {
	access, _, err := t.signAccessToken(userID, app.ID, scopes)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	resp := domain.TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(t.cfg.AccessTokenTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}

	if hasScope(scopes, domain.ScopeOpenID) {
		idToken, err := t.signIDToken(ctx, app, userID, scopes, nonce)
		if err != nil {
			return domain.TokenResponse{}, err
		}
		resp.IDToken = idToken
	}

	if withRefresh {
		refresh, err := cryptox.GenerateToken(cryptox.TokenSize384)
		if err != nil {
			return domain.TokenResponse{}, err
		}
		if err := t.store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:            idx.New().String(),
			UserID:        userID,
			ApplicationID: app.ID,
			TokenHash:     cryptox.FingerprintToken(refresh),
			Scopes:        scopes,
			ExpiresAt:     time.Now().UTC().Add(t.cfg.RefreshTokenTTL),
		}); err != nil {
			return domain.TokenResponse{}, err
		}
		resp.RefreshToken = refresh
	}

	return resp, nil
}

// signAccessToken mints an RFC 9068 access token. Returns the token and its
// jti.
func (t *TokenService) signAccessToken(subject, clientID string, scopes []string) (string, string, error) {
	signer := t.keys.Signer()
	if signer == nil {
		return "", "", ErrNoSigningKey
	}

	claims := jwtx.NewAccessClaims(
		subject, clientID,
		strings.Join(scopes, " "),
		t.cfg.AccessTokenTTL,
		t.cfg.Issuer,
		[]string{clientID},
		time.Now().UTC(),
	)
	token, err := signer.Sign(claims, jwtx.TypeAccessToken)
	if err != nil {
		return "", "", err
	}
	return token, claims.ID, nil
}

// signIDToken mints the OIDC ID token with claims filtered to the granted
// scopes. Claims the user has no value for stay absent.
func (t *TokenService) signIDToken(ctx context.Context, app domain.Application, userID string, scopes []string, nonce string) (string, error) {
	signer := t.keys.Signer()
	if signer == nil {
		return "", ErrNoSigningKey
	}

	user, err := t.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := jwtx.IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{app.ID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.IDTokenTTL)),
		},
		Nonce: nonce,
	}

	if hasScope(scopes, domain.ScopeProfile) {
		claims.Name = user.Name
		claims.GivenName = user.GivenName
		claims.FamilyName = user.FamilyName
		claims.Picture = user.Picture
	}
	if hasScope(scopes, domain.ScopeEmail) && user.Email != "" {
		claims.Email = user.Email
		verified := user.EmailVerified
		claims.EmailVerified = &verified
	}

	token, err := signer.Sign(claims, jwtx.TypeJWT)
	if err != nil {
		return "", err
	}

	slogx.FromContext(ctx).DebugContext(ctx, "issued id token", "user_id", user.ID, "application_id", app.ID)
	return token, nil
}

func hasScope(scopes []string, name string) bool {
	for _, s := range scopes {
		if s == name {
			return true
		}
	}
	return false
}
