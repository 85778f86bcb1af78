package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKV exercises the KV contract every backend has to honour.
func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	v, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", v)

	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, _, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, kv.Set(ctx, "empty", ""))
	v, found, err = kv.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)

	require.NoError(t, kv.Remove(ctx, "k"))
	_, found, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Remove(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	testKV(t, NewMemoryStore(0))
}

func TestMemoryStore_Quota(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(10)

	require.NoError(t, m.Set(ctx, "a", "123456789"))
	assert.Equal(t, 10, m.Used())

	assert.ErrorIs(t, m.Set(ctx, "b", "x"), ErrQuotaExceeded)
	_, found, _ := m.Get(ctx, "b")
	assert.False(t, found)

	// Replacing a value only counts the difference.
	require.NoError(t, m.Set(ctx, "a", "987654321"))
	assert.ErrorIs(t, m.Set(ctx, "a", "0123456789"), ErrQuotaExceeded)
	v, _, _ := m.Get(ctx, "a")
	assert.Equal(t, "987654321", v)

	require.NoError(t, m.Remove(ctx, "a"))
	assert.Equal(t, 0, m.Used())
	require.NoError(t, m.Set(ctx, "b", "x"))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryStore(0)

	assert.ErrorIs(t, m.Set(ctx, "a", "b"), context.Canceled)
	_, _, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
