package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Dodge100/FairArena-sub008/internal/auth/kv"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client, "test"), mr
}

func TestStoreBasics(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", []byte("v1"), time.Minute))
		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), got)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "absent")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "ephemeral", []byte("x"), time.Second))
		mr.FastForward(2 * time.Second)
		_, err := s.Get(ctx, "ephemeral")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", []byte("v"), time.Minute))
		require.NoError(t, s.Delete(ctx, "k2"))
		require.NoError(t, s.Delete(ctx, "k2"))
		_, err := s.Get(ctx, "k2")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("getdel takes the value exactly once", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "once", []byte("v"), time.Minute))

		got, err := s.GetDel(ctx, "once")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)

		_, err = s.GetDel(ctx, "once")
		require.ErrorIs(t, err, kv.ErrNotFound)
		_, err = s.Get(ctx, "once")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("setnx claims once", func(t *testing.T) {
		ok, err := s.SetNX(ctx, "claim", []byte("first"), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.SetNX(ctx, "claim", []byte("second"), time.Minute)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := s.Get(ctx, "claim")
		require.NoError(t, err)
		require.Equal(t, []byte("first"), got)
	})
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	t.Run("applies fn and preserves ttl", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "state", []byte("pending"), time.Minute))

		err := s.Update(ctx, "state", func(current []byte) ([]byte, error) {
			require.Equal(t, []byte("pending"), current)
			return []byte("approved"), nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "state")
		require.NoError(t, err)
		require.Equal(t, []byte("approved"), got)

		ttl := mr.TTL("test:state")
		require.Greater(t, ttl, time.Duration(0))
		require.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("missing key", func(t *testing.T) {
		err := s.Update(ctx, "ghost", func([]byte) ([]byte, error) {
			return []byte("x"), nil
		})
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("fn error aborts and surfaces", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "guarded", []byte("v"), time.Minute))

		sentinel := kv.ErrConflict
		err := s.Update(ctx, "guarded", func([]byte) ([]byte, error) {
			return nil, sentinel
		})
		require.ErrorIs(t, err, sentinel)

		got, err := s.Get(ctx, "guarded")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)
	})
}
