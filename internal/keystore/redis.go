package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/megalab/megaid/pkg/megaid"
)

// RedisStore keeps the key pair in a Redis hash at megaid:{namespace}:keys
// with fields "admin" and "shared". The client is safe for concurrent use.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisStore creates a store for the given namespace.
func NewRedisStore(opts *redis.Options, namespace string) (*RedisStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &RedisStore{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
	}, nil
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store.
func NewRedisStoreFromURL(url, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewRedisStore(opts, namespace)
}

// KeysKey returns the Redis key holding the pair for namespace.
func KeysKey(namespace string) string {
	return fmt.Sprintf("megaid:%s:keys", namespace)
}

// Describe implements Store.
func (s *RedisStore) Describe() string {
	return "redis " + KeysKey(s.namespace)
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (megaid.Keys, error) {
	fields, err := s.rdb.HGetAll(ctx, KeysKey(s.namespace)).Result()
	if err != nil {
		return megaid.Keys{}, fmt.Errorf("failed to read keys from Redis: %w", err)
	}
	return keysFromValues(fields["admin"], fields["shared"], s.Describe())
}

// Save implements Store. It never overwrites an existing pair, so concurrent
// bootstraps agree on a single pair.
func (s *RedisStore) Save(ctx context.Context, keys megaid.Keys) error {
	if err := keys.Validate(); err != nil {
		return err
	}
	key := KeysKey(s.namespace)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrKeysExist
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "admin", keys.Admin, "shared", keys.Shared)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrKeysExist), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%s: %w", s.Describe(), ErrKeysExist)
	default:
		return fmt.Errorf("failed to write keys to Redis: %w", err)
	}
}
