package service

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
)

// backdateDevicePoll rewinds LastPolledAt so the next poll is not rejected as
// too fast. Tests would otherwise have to sleep out the real interval.
func backdateDevicePoll(t *testing.T, env *testEnv, deviceCode string) {
	t.Helper()
	mutateDeviceRecord(t, env, deviceCode, func(d *domain.DeviceAuthorization) {
		d.LastPolledAt = time.Now().UTC().Add(-time.Minute)
	})
}

func mutateDeviceRecord(t *testing.T, env *testEnv, deviceCode string, fn func(*domain.DeviceAuthorization)) {
	t.Helper()
	key := deviceKeyPrefix + cryptox.FingerprintToken(deviceCode)
	err := env.codes.Update(context.Background(), key, func(current []byte) ([]byte, error) {
		var d domain.DeviceAuthorization
		if err := json.Unmarshal(current, &d); err != nil {
			return nil, err
		}
		fn(&d)
		return json.Marshal(d)
	})
	require.NoError(t, err)
}

func TestDeviceAuthorize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid", "profile")

	t.Run("mints both codes", func(t *testing.T) {
		result, err := env.device.Authorize(ctx, app.ID, []string{"openid", "profile"})
		require.NoError(t, err)
		require.Len(t, result.DeviceCode, 86)
		require.Regexp(t, regexp.MustCompile(`^[A-Z2-9]{4}-[A-Z2-9]{4}$`), result.UserCode)
		require.Equal(t, testIssuer+"/device", result.VerificationURI)
		require.Equal(t, result.VerificationURI+"?user_code="+result.UserCode, result.VerificationURIComplete)
		require.EqualValues(t, 600, result.ExpiresIn)
		require.Equal(t, 5, result.Interval)
	})

	t.Run("unknown application", func(t *testing.T) {
		_, err := env.device.Authorize(ctx, "ghost", []string{"openid"})
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("invalid scope", func(t *testing.T) {
		_, err := env.device.Authorize(ctx, app.ID, []string{"email"})
		require.ErrorIs(t, err, ErrInvalidScope)
	})
}

func TestDevicePolling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid")

	result, err := env.device.Authorize(ctx, app.ID, []string{"openid"})
	require.NoError(t, err)

	t.Run("pending before approval", func(t *testing.T) {
		_, err := env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrAuthorizationPending)
	})

	t.Run("too fast is slow_down", func(t *testing.T) {
		_, err := env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrSlowDown)
	})

	t.Run("rejected poll still resets the clock", func(t *testing.T) {
		// A client that ignores slow_down keeps getting slow_down.
		_, err := env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrSlowDown)
	})

	t.Run("pending again once the interval passes", func(t *testing.T) {
		backdateDevicePoll(t, env, result.DeviceCode)
		_, err := env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrAuthorizationPending)
	})

	t.Run("foreign application", func(t *testing.T) {
		other := env.seedPublicApp(t, "openid")
		backdateDevicePoll(t, env, result.DeviceCode)
		_, err := env.device.Consume(ctx, other.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestDeviceApproval(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid", "profile")
	user := env.seedUser(t)

	result, err := env.device.Authorize(ctx, app.ID, []string{"openid", "profile"})
	require.NoError(t, err)

	t.Run("lookup is forgiving about case and dash", func(t *testing.T) {
		sloppy := "  " + string(result.UserCode[0]|0x20) + result.UserCode[1:4] + result.UserCode[5:] + " "
		record, err := env.device.Lookup(ctx, sloppy)
		require.NoError(t, err)
		require.Equal(t, app.ID, record.ApplicationID)
		require.Equal(t, domain.DeviceStatusPending, record.Status)
	})

	require.NoError(t, env.device.Approve(ctx, result.UserCode, user.ID))

	t.Run("approval records consent", func(t *testing.T) {
		consent, err := env.store.Consents().GetConsent(ctx, user.ID, app.ID)
		require.NoError(t, err)
		require.True(t, consent.HasScope("openid"))
		require.True(t, consent.HasScope("profile"))
	})

	t.Run("exactly one exchange", func(t *testing.T) {
		record, err := env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.NoError(t, err)
		require.Equal(t, user.ID, record.UserID)
		require.Equal(t, []string{"openid", "profile"}, record.Scopes)

		backdateDevicePoll(t, env, result.DeviceCode)
		_, err = env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrDeviceCodeExpired)
	})

	t.Run("user code mapping is gone", func(t *testing.T) {
		_, err := env.device.Lookup(ctx, result.UserCode)
		require.ErrorIs(t, err, ErrUserCodeNotFound)
	})

	t.Run("second approval is refused", func(t *testing.T) {
		err := env.device.Approve(ctx, result.UserCode, user.ID)
		require.ErrorIs(t, err, ErrUserCodeNotFound)
	})
}

func TestDeviceTokenExchange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid", "profile")
	user := env.seedUser(t)

	result, err := env.device.Authorize(ctx, app.ID, []string{"openid", "profile"})
	require.NoError(t, err)
	require.NoError(t, env.device.Approve(ctx, result.UserCode, user.ID))

	resp, err := env.tokens.ExchangeDeviceCode(ctx, app, result.DeviceCode)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEmpty(t, resp.IDToken)
	require.Equal(t, "openid profile", resp.Scope)

	claims, err := env.verifier.VerifyAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, claims)
	require.Equal(t, user.ID, claims.Subject)
}

func TestDeviceDenial(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid")
	user := env.seedUser(t)

	result, err := env.device.Authorize(ctx, app.ID, []string{"openid"})
	require.NoError(t, err)
	require.NoError(t, env.device.Deny(ctx, result.UserCode, user.ID))

	t.Run("poll sees access_denied", func(t *testing.T) {
		_, err := env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrDeviceAccessDenied)
	})

	t.Run("approval after denial refused", func(t *testing.T) {
		err := env.device.Approve(ctx, result.UserCode, user.ID)
		require.ErrorIs(t, err, ErrDeviceCodeConsumed)
	})

	t.Run("denial does not create consent", func(t *testing.T) {
		_, err := env.store.Consents().GetConsent(ctx, user.ID, app.ID)
		require.Error(t, err)
	})
}

func TestDeviceExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	app := env.seedPublicApp(t, "openid")

	t.Run("expired record", func(t *testing.T) {
		result, err := env.device.Authorize(ctx, app.ID, []string{"openid"})
		require.NoError(t, err)

		mutateDeviceRecord(t, env, result.DeviceCode, func(d *domain.DeviceAuthorization) {
			d.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		})

		_, err = env.device.Consume(ctx, app.ID, result.DeviceCode)
		require.ErrorIs(t, err, ErrDeviceCodeExpired)
	})

	t.Run("unknown device code", func(t *testing.T) {
		_, err := env.device.Consume(ctx, app.ID, "never-issued")
		require.ErrorIs(t, err, ErrDeviceCodeExpired)
	})

	t.Run("unknown user code", func(t *testing.T) {
		_, err := env.device.Lookup(ctx, "ZZZZ-ZZZZ")
		require.ErrorIs(t, err, ErrUserCodeNotFound)
	})
}

func TestNormalizeUserCode(t *testing.T) {
	cases := map[string]string{
		"abcd-efgh":  "ABCD-EFGH",
		"ABCDEFGH":   "ABCD-EFGH",
		" wxyz2345 ": "WXYZ-2345",
		"AB-CD":      "ABCD",
		"":           "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeUserCode(in), "input %q", in)
	}
}
