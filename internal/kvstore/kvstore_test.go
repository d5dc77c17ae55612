package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/internal/config"
)

// ============================================================================
// Namespacing: pure logic, no Redis needed
// ============================================================================

func TestNamespacedKey_PrefixesKeyWithNamespace(t *testing.T) {
	assert.Equal(t, "tenant-a:profile", namespacedKey("tenant-a", "profile"))
}

// ============================================================================
// Integration test with real Redis (skipped in short mode)
// ============================================================================

func TestStore_WithRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := New(config.RedisConfig{Host: "localhost", Port: 6379})
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	namespace := "test-tenant-" + time.Now().Format("150405.000000")
	defer s.Clear(ctx, namespace)

	t.Run("set then get round-trips a value", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, namespace, "foo", map[string]string{"a": "b"}))

		var dest map[string]string
		require.NoError(t, s.Get(ctx, namespace, "foo", &dest))
		assert.Equal(t, "b", dest["a"])
	})

	t.Run("has reflects presence and absence", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, namespace, "present", "x"))

		has, err := s.Has(ctx, namespace, "present")
		require.NoError(t, err)
		assert.True(t, has)

		has, err = s.Has(ctx, namespace, "absent")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("delete removes a key", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, namespace, "to-delete", "x"))
		require.NoError(t, s.Delete(ctx, namespace, "to-delete"))

		has, err := s.Has(ctx, namespace, "to-delete")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("keys and count reflect namespace contents, other namespaces excluded", func(t *testing.T) {
		other := namespace + "-other"
		defer s.Clear(ctx, other)

		require.NoError(t, s.Set(ctx, namespace, "k1", "v1"))
		require.NoError(t, s.Set(ctx, namespace, "k2", "v2"))
		require.NoError(t, s.Set(ctx, other, "k3", "v3"))

		keys, err := s.Keys(ctx, namespace)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"k1", "k2"}, keys)

		count, err := s.Count(ctx, namespace)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("getAll returns raw JSON keyed by unprefixed key", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, namespace, "ga1", 42))

		all, err := s.GetAll(ctx, namespace)
		require.NoError(t, err)
		require.Contains(t, all, "ga1")
		assert.JSONEq(t, "42", string(all["ga1"]))
	})

	t.Run("clear removes every key in the namespace", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, namespace, "cleared", "x"))

		require.NoError(t, s.Clear(ctx, namespace))

		count, err := s.Count(ctx, namespace)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("setWithTTL expires the key after the given duration", func(t *testing.T) {
		require.NoError(t, s.SetWithTTL(ctx, namespace, "ttl-key", "v", 50*time.Millisecond))

		has, err := s.Has(ctx, namespace, "ttl-key")
		require.NoError(t, err)
		assert.True(t, has)

		time.Sleep(150 * time.Millisecond)

		has, err = s.Has(ctx, namespace, "ttl-key")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("get on a missing key surfaces redis.Nil", func(t *testing.T) {
		var dest string
		err := s.Get(ctx, namespace, "does-not-exist", &dest)
		assert.ErrorIs(t, err, redis.Nil)
	})
}
