// Package kvstore implements the tenant-namespaced KeyValueStore external
// interface (§6): get/set/delete/has/keys/getAll/clear/count on
// (namespace, key), backed by Redis.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uzzalhcse/crawlify/internal/config"
)

// Store is a thin, tenant-namespaced JSON-value KV surface over Redis.
type Store struct {
	client *redis.Client
}

func New(cfg config.RedisConfig) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func namespacedKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// Set stores a JSON-serializable value under (namespace, key).
func (s *Store) Set(ctx context.Context, namespace, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, namespacedKey(namespace, key), data, 0).Err()
}

// SetWithTTL is Set with an expiry; a zero ttl behaves like Set (no expiry).
// Backs the orchestrator's fetch result cache, where entries should age out
// on their own rather than accumulate forever.
func (s *Store) SetWithTTL(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, namespacedKey(namespace, key), data, ttl).Err()
}

// Get retrieves and unmarshals the value stored under (namespace, key) into
// dest. Returns redis.Nil-wrapped error when the key does not exist.
func (s *Store) Get(ctx context.Context, namespace, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, namespacedKey(namespace, key)).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Has reports whether (namespace, key) exists.
func (s *Store) Has(ctx context.Context, namespace, key string) (bool, error) {
	n, err := s.client.Exists(ctx, namespacedKey(namespace, key)).Result()
	return n > 0, err
}

// Delete removes (namespace, key).
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	return s.client.Del(ctx, namespacedKey(namespace, key)).Err()
}

// Keys lists every key currently stored under a namespace, with the
// namespace prefix stripped.
func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	prefix := namespace + ":"
	raw, err := s.client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		out = append(out, k[len(prefix):])
	}
	return out, nil
}

// GetAll returns every raw JSON value stored in a namespace, keyed by its
// unprefixed key.
func (s *Store) GetAll(ctx context.Context, namespace string) (map[string]json.RawMessage, error) {
	keys, err := s.Keys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		data, err := s.client.Get(ctx, namespacedKey(namespace, k)).Bytes()
		if err != nil {
			continue
		}
		out[k] = json.RawMessage(data)
	}
	return out, nil
}

// Clear removes every key in a namespace.
func (s *Store) Clear(ctx context.Context, namespace string) error {
	keys, err := s.Keys(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = namespacedKey(namespace, k)
	}
	return s.client.Del(ctx, full...).Err()
}

// Count reports how many keys exist in a namespace.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	keys, err := s.Keys(ctx, namespace)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
