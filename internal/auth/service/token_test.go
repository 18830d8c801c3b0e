package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
	"github.com/Dodge100/FairArena-sub008/pkg/jwtx"
)

func pkcePair() (verifier, challenge string) {
	verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:])
}

func parseIDToken(t *testing.T, token string) *jwtx.IDClaims {
	t.Helper()
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwtx.IDClaims{})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(*jwtx.IDClaims)
	require.True(t, ok)
	return claims
}

func TestAuthorizationCodeGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid", "profile", "email")
	user := env.seedUser(t)
	verifier, challenge := pkcePair()

	issue := func(scopes []string) string {
		code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
			ApplicationID: app.ID,
			UserID:        user.ID,
			Scopes:        scopes,
			RedirectURI:   app.RedirectURIs[0],
			CodeChallenge: challenge,
			Nonce:         "nonce-1",
		})
		require.NoError(t, err)
		return code
	}

	t.Run("full exchange", func(t *testing.T) {
		code := issue([]string{"openid", "profile"})

		resp, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
		require.NoError(t, err)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Equal(t, "openid profile", resp.Scope)
		require.EqualValues(t, 900, resp.ExpiresIn)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.NotEmpty(t, resp.IDToken)

		claims, err := env.verifier.VerifyAccessToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, claims)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, app.ID, claims.ClientID)
		require.Equal(t, "openid profile", claims.Scope)

		id := parseIDToken(t, resp.IDToken)
		require.Equal(t, user.ID, id.Subject)
		require.Equal(t, "nonce-1", id.Nonce)
		require.Equal(t, "Ada", id.GivenName)
		require.Equal(t, "Lovelace", id.FamilyName)
		require.Empty(t, id.Email)
		require.Nil(t, id.EmailVerified)

		t.Run("code is single use", func(t *testing.T) {
			_, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
			require.ErrorIs(t, err, ErrInvalidGrant)
		})
	})

	t.Run("email scope releases email claims", func(t *testing.T) {
		code := issue([]string{"openid", "email"})

		resp, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
		require.NoError(t, err)

		id := parseIDToken(t, resp.IDToken)
		require.Equal(t, "ada@example.com", id.Email)
		require.NotNil(t, id.EmailVerified)
		require.True(t, *id.EmailVerified)
		require.Empty(t, id.GivenName)
	})

	t.Run("confidential client may skip pkce", func(t *testing.T) {
		confApp, _ := env.seedConfidentialApp(t, "openid")

		code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
			ApplicationID: confApp.ID,
			UserID:        user.ID,
			Scopes:        []string{"openid"},
			RedirectURI:   confApp.RedirectURIs[0],
		})
		require.NoError(t, err)

		resp, err := env.tokens.ExchangeAuthorizationCode(ctx, confApp, code, confApp.RedirectURIs[0], "")
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
	})
}

func TestAuthorizationCodeRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid", "profile")
	user := env.seedUser(t)
	verifier, challenge := pkcePair()

	issue := func() string {
		code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
			ApplicationID: app.ID,
			UserID:        user.ID,
			Scopes:        []string{"openid"},
			RedirectURI:   app.RedirectURIs[0],
			CodeChallenge: challenge,
		})
		require.NoError(t, err)
		return code
	}

	t.Run("failed pkce burns the code", func(t *testing.T) {
		code := issue()

		_, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], "wrong-verifier-wrong-verifier-wrong-verifier")
		require.ErrorIs(t, err, ErrInvalidGrant)

		// Even the right verifier cannot resurrect it.
		_, err = env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("redirect mismatch", func(t *testing.T) {
		code := issue()
		_, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, "https://evil.test/cb", verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("application mismatch", func(t *testing.T) {
		other := env.seedPublicApp(t, "openid")
		code := issue()
		_, err := env.tokens.ExchangeAuthorizationCode(ctx, other, code, app.RedirectURIs[0], verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("verifier against a challenge-less code", func(t *testing.T) {
		confApp, _ := env.seedConfidentialApp(t, "openid")
		code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
			ApplicationID: confApp.ID,
			UserID:        user.ID,
			Scopes:        []string{"openid"},
			RedirectURI:   confApp.RedirectURIs[0],
		})
		require.NoError(t, err)

		_, err = env.tokens.ExchangeAuthorizationCode(ctx, confApp, code, confApp.RedirectURIs[0], verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := env.tokens.ExchangeAuthorizationCode(ctx, app, "no-such-code", app.RedirectURIs[0], verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestAuthorizationCodeConcurrentExchange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid")
	user := env.seedUser(t)
	verifier, challenge := pkcePair()

	code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
		ApplicationID: app.ID,
		UserID:        user.ID,
		Scopes:        []string{"openid"},
		RedirectURI:   app.RedirectURIs[0],
		CodeChallenge: challenge,
	})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidGrant)
	}
	require.Equal(t, 1, succeeded)
}

func TestIssueCodeValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid")
	user := env.seedUser(t)
	_, challenge := pkcePair()

	base := AuthorizeRequest{
		ApplicationID: app.ID,
		UserID:        user.ID,
		Scopes:        []string{"openid"},
		RedirectURI:   app.RedirectURIs[0],
		CodeChallenge: challenge,
	}

	t.Run("public client requires pkce", func(t *testing.T) {
		req := base
		req.CodeChallenge = ""
		_, err := env.authorize.IssueCode(ctx, req)
		require.ErrorIs(t, err, ErrPKCERequired)
	})

	t.Run("method without challenge", func(t *testing.T) {
		req := base
		req.CodeChallenge = ""
		req.CodeChallengeMethod = cryptox.PKCEMethodS256
		_, err := env.authorize.IssueCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCodeChallenge)
	})

	t.Run("unsupported method", func(t *testing.T) {
		req := base
		req.CodeChallengeMethod = "S512"
		_, err := env.authorize.IssueCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCodeChallenge)
	})

	t.Run("challenge length out of range", func(t *testing.T) {
		req := base
		req.CodeChallenge = "too-short"
		_, err := env.authorize.IssueCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCodeChallenge)
	})

	t.Run("unregistered redirect", func(t *testing.T) {
		req := base
		req.RedirectURI = "https://evil.test/cb"
		_, err := env.authorize.IssueCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirectURI)
	})

	t.Run("unknown application", func(t *testing.T) {
		req := base
		req.ApplicationID = "ghost"
		_, err := env.authorize.IssueCode(ctx, req)
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid", "profile")
	user := env.seedUser(t)
	verifier, challenge := pkcePair()

	code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
		ApplicationID: app.ID,
		UserID:        user.ID,
		Scopes:        []string{"openid", "profile"},
		RedirectURI:   app.RedirectURIs[0],
		CodeChallenge: challenge,
	})
	require.NoError(t, err)

	initial, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
	require.NoError(t, err)

	rotated, err := env.tokens.ExchangeRefreshToken(ctx, app, initial.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
	require.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)
	require.Equal(t, "openid profile", rotated.Scope)

	t.Run("replay of rotated token rejected", func(t *testing.T) {
		_, err := env.tokens.ExchangeRefreshToken(ctx, app, initial.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("replacement keeps working", func(t *testing.T) {
		again, err := env.tokens.ExchangeRefreshToken(ctx, app, rotated.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, again.AccessToken)

		claims, err := env.verifier.VerifyAccessToken(ctx, again.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, claims)
		require.Equal(t, user.ID, claims.Subject)
	})

	t.Run("foreign application rejected", func(t *testing.T) {
		other := env.seedPublicApp(t, "openid")
		fresh, err := env.tokens.ExchangeRefreshToken(ctx, app, mustRefresh(t, env, app, user))
		require.NoError(t, err)

		_, err = env.tokens.ExchangeRefreshToken(ctx, other, fresh.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := env.tokens.ExchangeRefreshToken(ctx, app, "never-issued")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

// mustRefresh runs a fresh code exchange and returns its refresh token.
func mustRefresh(t *testing.T, env *testEnv, app domain.Application, user domain.User) string {
	t.Helper()
	ctx := context.Background()
	verifier, challenge := pkcePair()

	code, err := env.authorize.IssueCode(ctx, AuthorizeRequest{
		ApplicationID: app.ID,
		UserID:        user.ID,
		Scopes:        []string{"openid"},
		RedirectURI:   app.RedirectURIs[0],
		CodeChallenge: challenge,
	})
	require.NoError(t, err)

	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, app, code, app.RedirectURIs[0], verifier)
	require.NoError(t, err)
	require.NotEmpty(t, resp.RefreshToken)
	return resp.RefreshToken
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app, _ := env.seedConfidentialApp(t, "api.read", "api.write")

	t.Run("explicit scopes", func(t *testing.T) {
		resp, err := env.tokens.ExchangeClientCredentials(ctx, app, []string{"api.read"})
		require.NoError(t, err)
		require.Equal(t, "api.read", resp.Scope)
		require.Empty(t, resp.RefreshToken)
		require.Empty(t, resp.IDToken)

		claims, err := env.verifier.VerifyAccessToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, claims)
		require.Empty(t, claims.Subject)
		require.Equal(t, app.ID, claims.ClientID)
	})

	t.Run("defaults to all allowed scopes", func(t *testing.T) {
		resp, err := env.tokens.ExchangeClientCredentials(ctx, app, nil)
		require.NoError(t, err)
		require.Equal(t, "api.read api.write", resp.Scope)
	})

	t.Run("disallowed scope", func(t *testing.T) {
		_, err := env.tokens.ExchangeClientCredentials(ctx, app, []string{"admin"})
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("public client rejected", func(t *testing.T) {
		public := env.seedPublicApp(t, "api.read")
		_, err := env.tokens.ExchangeClientCredentials(ctx, public, nil)
		require.ErrorIs(t, err, ErrUnauthorizedClient)
	})
}

func TestConcurrentIssuanceDistinctJTIs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app, _ := env.seedConfidentialApp(t, "api.read")

	const issuances = 16
	var wg sync.WaitGroup
	tokens := make([]string, issuances)
	errs := make([]error, issuances)
	for i := 0; i < issuances; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var resp domain.TokenResponse
			resp, errs[i] = env.tokens.ExchangeClientCredentials(ctx, app, []string{"api.read"})
			tokens[i] = resp.AccessToken
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, issuances)
	for i, token := range tokens {
		require.NoError(t, errs[i])

		claims := jwt.MapClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(token, claims)
		require.NoError(t, err)

		jti, _ := claims["jti"].(string)
		require.NotEmpty(t, jti)
		_, dup := seen[jti]
		require.False(t, dup, "jti %q issued twice", jti)
		seen[jti] = struct{}{}
	}
}

func TestRevocation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app, _ := env.seedConfidentialApp(t, "openid", "api.read")
	user := env.seedUser(t)

	t.Run("refresh token", func(t *testing.T) {
		refresh := mustRefresh(t, env, app, user)

		require.NoError(t, env.tokens.Revoke(ctx, app, refresh))

		_, err := env.tokens.ExchangeRefreshToken(ctx, app, refresh)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("access token lands on the denylist", func(t *testing.T) {
		resp, err := env.tokens.ExchangeClientCredentials(ctx, app, []string{"api.read"})
		require.NoError(t, err)

		claims, err := env.verifier.VerifyAccessToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, claims)

		require.NoError(t, env.tokens.Revoke(ctx, app, resp.AccessToken))

		claims, err = env.verifier.VerifyAccessToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.Nil(t, claims)
	})

	t.Run("unknown token is a silent success", func(t *testing.T) {
		require.NoError(t, env.tokens.Revoke(ctx, app, "never-issued"))
	})

	t.Run("foreign token left untouched", func(t *testing.T) {
		other, _ := env.seedConfidentialApp(t, "api.read")
		resp, err := env.tokens.ExchangeClientCredentials(ctx, app, []string{"api.read"})
		require.NoError(t, err)

		require.NoError(t, env.tokens.Revoke(ctx, other, resp.AccessToken))

		claims, err := env.verifier.VerifyAccessToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, claims)
	})
}

func TestIntrospection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app, _ := env.seedConfidentialApp(t, "api.read")

	t.Run("active token", func(t *testing.T) {
		resp, err := env.tokens.ExchangeClientCredentials(ctx, app, []string{"api.read"})
		require.NoError(t, err)

		result, err := env.verifier.Introspect(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.True(t, result.Active)
		require.Equal(t, "api.read", result.Scope)
		require.Equal(t, app.ID, result.ClientID)
		require.Equal(t, "access_token", result.TokenUse)
		require.Greater(t, result.Exp, time.Now().Unix())
		require.NotEmpty(t, result.JTI)
		require.Positive(t, result.Iat)
		require.LessOrEqual(t, result.Iat, time.Now().Unix())
	})

	t.Run("garbage token", func(t *testing.T) {
		result, err := env.verifier.Introspect(ctx, "not-a-token")
		require.NoError(t, err)
		require.Equal(t, IntrospectionResult{Active: false}, result)
	})

	t.Run("empty token", func(t *testing.T) {
		result, err := env.verifier.Introspect(ctx, "")
		require.NoError(t, err)
		require.False(t, result.Active)
	})
}
