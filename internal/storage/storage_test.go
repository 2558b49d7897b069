package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	IDs  []int64 `json:"ids"`
	Note string  `json:"note"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"redis":  NewRedisStore(rdb, "test"),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got snapshot
			assert.ErrorIs(t, s.Get(ctx, "missing", &got), ErrNotFound)

			want := snapshot{IDs: []int64{3, 1}, Note: "hello"}
			require.NoError(t, s.Set(ctx, "snap", want))
			require.NoError(t, s.Get(ctx, "snap", &got))
			assert.Equal(t, want, got)

			require.NoError(t, s.Set(ctx, "snap", snapshot{Note: "overwritten"}))
			require.NoError(t, s.Get(ctx, "snap", &got))
			assert.Equal(t, "overwritten", got.Note)

			require.NoError(t, s.Set(ctx, "other", "x"))
			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"other", "snap"}, keys)

			require.NoError(t, s.Remove(ctx, "other"))
			require.NoError(t, s.Remove(ctx, "other"))
			assert.ErrorIs(t, s.Get(ctx, "other", nil), ErrNotFound)

			require.NoError(t, s.Clear(ctx))
			keys, err = s.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestStoreTakeIsOneShot(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "completed", snapshot{Note: "done"}))

			var got snapshot
			require.NoError(t, s.Take(ctx, "completed", &got))
			assert.Equal(t, "done", got.Note)

			assert.ErrorIs(t, s.Take(ctx, "completed", &got), ErrNotFound)
			assert.ErrorIs(t, s.Get(ctx, "completed", &got), ErrNotFound)
		})
	}
}

func TestRedisStoreClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, "mine")
	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, mr.Set("theirs:a", "1"))

	require.NoError(t, s.Clear(ctx))
	assert.True(t, mr.Exists("theirs:a"))
	assert.False(t, mr.Exists("mine:a"))
}
