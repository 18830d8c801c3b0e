package httpx

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func basicHeader(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

func TestParseBasicAuth(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		id, secret, ok := ParseBasicAuth(basicHeader("my-client", "s3cret"))
		require.True(t, ok)
		require.Equal(t, "my-client", id)
		require.Equal(t, "s3cret", secret)
	})

	t.Run("percent-encoded halves are decoded", func(t *testing.T) {
		id, secret, ok := ParseBasicAuth(basicHeader("client%3Aone", "p%40ss"))
		require.True(t, ok)
		require.Equal(t, "client:one", id)
		require.Equal(t, "p@ss", secret)
	})

	t.Run("empty secret allowed by parser", func(t *testing.T) {
		id, secret, ok := ParseBasicAuth(basicHeader("client", ""))
		require.True(t, ok)
		require.Equal(t, "client", id)
		require.Empty(t, secret)
	})

	t.Run("missing prefix", func(t *testing.T) {
		_, _, ok := ParseBasicAuth("Bearer abcdef")
		require.False(t, ok)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, _, ok := ParseBasicAuth("Basic not-base64!!!")
		require.False(t, ok)
	})

	t.Run("no colon separator", func(t *testing.T) {
		_, _, ok := ParseBasicAuth("Basic " + base64.StdEncoding.EncodeToString([]byte("just-a-client-id")))
		require.False(t, ok)
	})

	t.Run("empty header", func(t *testing.T) {
		_, _, ok := ParseBasicAuth("")
		require.False(t, ok)
	})
}
