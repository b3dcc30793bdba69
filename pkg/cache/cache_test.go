package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexql/vertexql/pkg/value"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(10, 0)
	key := Key(1, 2, 0, 0, "EXISTS")
	c.Put(key, Result{Kind: KindBool, Bool: true}, 0, 0)

	got, ok := c.Get(key, 0, 0)
	require.True(t, ok)
	assert.Equal(t, KindBool, got.Kind)
	assert.True(t, got.Bool)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestGetMissesOnUnknownKey(t *testing.T) {
	c := New(10, 0)
	_, ok := c.Get(Key(1, 2, 0, 0, "EXISTS"), 0, 0)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestGetTreatsStaleGraphVersionAsMiss(t *testing.T) {
	c := New(10, 0)
	key := Key(5, 5, 0, 0, "IN")
	c.Put(key, Result{Kind: KindScalar, Scalar: value.Number(1)}, 3, 0)

	_, ok := c.Get(key, 4, 0) // current graph version advanced past the cached 3
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "stale entry should have been evicted on lookup")
}

func TestTTLExpiresEntries(t *testing.T) {
	c := New(10, time.Millisecond)
	key := Key(1, 1, 0, 0, "SCALAR")
	c.Put(key, Result{Kind: KindScalar, Scalar: value.Number(7)}, 0, 0)

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(key, 0, 0)
	assert.False(t, ok)
}

func TestLRUEvictsOldestAtCapacity(t *testing.T) {
	c := New(2, 0)
	c.Put(Key(1, 0, 0, 0, "A"), Result{Kind: KindBool}, 0, 0)
	c.Put(Key(2, 0, 0, 0, "A"), Result{Kind: KindBool}, 0, 0)
	c.Put(Key(3, 0, 0, 0, "A"), Result{Kind: KindBool}, 0, 0) // evicts key 1

	_, ok := c.Get(Key(1, 0, 0, 0, "A"), 0, 0)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, 2, c.Len())
}

func TestBindingsHashDiffersOnBoundValue(t *testing.T) {
	rowA := map[string]value.Value{"x": value.Number(1)}
	rowB := map[string]value.Value{"x": value.Number(2)}
	assert.NotEqual(t, BindingsHash(rowA, []string{"x"}), BindingsHash(rowB, []string{"x"}))
}

func TestInvalidateDropsStaleEntriesOnly(t *testing.T) {
	c := New(10, 0)
	oldKey := Key(1, 0, 0, 0, "A")
	freshKey := Key(2, 0, 0, 0, "A")
	c.Put(oldKey, Result{Kind: KindBool}, 1, 0)
	c.Put(freshKey, Result{Kind: KindBool}, 5, 0)

	c.Invalidate(3, 0)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(freshKey, 5, 0)
	assert.True(t, ok)
}
