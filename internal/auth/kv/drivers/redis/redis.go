// Package redis implements the kv.Store interface on top of a Redis server.
// Atomic updates use optimistic locking (WATCH / MULTI / EXEC) so concurrent
// state transitions on the same entry resolve to exactly one winner.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dodge100/FairArena-sub008/internal/auth/kv"
)

// casRetries bounds how often Update re-runs after losing a WATCH race.
const casRetries = 5

// Config holds the Redis connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store is a Redis-backed kv.Store.
type Store struct {
	client *redis.Client
	prefix string
}

var _ kv.Store = (*Store)(nil)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewFromClient wraps an existing client. Used by tests running against
// miniredis.
func NewFromClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// GetDel consumes a single-use entry. GETDEL reads and removes in one server
// operation, so two concurrent callers cannot both observe the value.
func (s *Store) GetDel(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel: %w", err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Update runs fn inside WATCH so the write only lands if the value was
// untouched since the read. The entry's remaining TTL carries over to the
// replacement value.
func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	fullKey := s.key(key)

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return kv.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}

		ttl, err := tx.TTL(ctx, fullKey).Result()
		if err != nil {
			return fmt.Errorf("redis ttl: %w", err)
		}
		if ttl < 0 {
			// Key vanished or has no expiry; treat as gone so callers
			// re-resolve rather than resurrect an expired entry.
			return kv.ErrNotFound
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txn, fullKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return kv.ErrConflict
}

func (s *Store) Close() error {
	return s.client.Close()
}
