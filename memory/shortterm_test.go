package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestShortTerm(t *testing.T) (*ShortTermStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := DefaultShortTermConfig()
	cfg.Addr = mr.Addr()
	store, err := NewShortTermStore(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestShortTermSaveAndGet(t *testing.T) {
	store, _ := newTestShortTerm(t)
	ctx := context.Background()

	in := map[string]string{"hello": "world"}
	require.NoError(t, store.Save(ctx, "greeting", in, 0))

	var out map[string]string
	require.NoError(t, store.Get(ctx, "greeting", &out))
	assert.Equal(t, in, out)
}

func TestShortTermGetMiss(t *testing.T) {
	store, _ := newTestShortTerm(t)

	var out string
	err := store.Get(context.Background(), "absent", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestShortTermKeysArePrefixed(t *testing.T) {
	store, mr := newTestShortTerm(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", "v", 0))
	assert.True(t, mr.Exists("cortex:memory:k"))
}

func TestShortTermDefaultTTLApplied(t *testing.T) {
	store, mr := newTestShortTerm(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "expiring", "v", 0))

	ttl, err := store.TTL(ctx, "expiring")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)

	mr.FastForward(2 * time.Hour)
	var out string
	assert.ErrorIs(t, store.Get(ctx, "expiring", &out), ErrCacheMiss)
}

func TestShortTermDelete(t *testing.T) {
	store, _ := newTestShortTerm(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "doomed", "v", 0))
	require.NoError(t, store.Delete(ctx, "doomed"))

	var out string
	assert.ErrorIs(t, store.Get(ctx, "doomed", &out), ErrCacheMiss)
}

func TestShortTermClearSession(t *testing.T) {
	store, _ := newTestShortTerm(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "session:s1:a", 1, 0))
	require.NoError(t, store.Save(ctx, "session:s1:b", 2, 0))
	require.NoError(t, store.Save(ctx, "session:s2:a", 3, 0))

	require.NoError(t, store.Clear(ctx, "session:s1"))

	var out int
	assert.ErrorIs(t, store.Get(ctx, "session:s1:a", &out), ErrCacheMiss)
	assert.ErrorIs(t, store.Get(ctx, "session:s1:b", &out), ErrCacheMiss)
	assert.NoError(t, store.Get(ctx, "session:s2:a", &out))
}

func TestShortTermExistsAndExtend(t *testing.T) {
	store, mr := newTestShortTerm(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "k", "v", time.Minute))
	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ExtendTTL(ctx, "k", time.Hour))
	mr.FastForward(30 * time.Minute)
	var out string
	assert.NoError(t, store.Get(ctx, "k", &out))
}

func TestShortTermConnectFailure(t *testing.T) {
	cfg := DefaultShortTermConfig()
	cfg.Addr = "127.0.0.1:1"
	_, err := NewShortTermStore(cfg, zap.NewNop())
	assert.Error(t, err)
}
