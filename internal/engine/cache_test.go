package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeBatch fingerprints and stores one operation slice, returning the
// fingerprint.
func storeBatch(t *testing.T, c *resultCache, operations []Operation) Fingerprint {
	t.Helper()
	artifacts, err := echoTransform(context.Background(), operations, nil)
	require.NoError(t, err)
	fp := FingerprintOperations(operations)
	c.Store(fp, operations, artifacts)
	return fp
}

func TestResultCache(t *testing.T) {
	ops := makeOperations(12)

	t.Run("MissThenHit", func(t *testing.T) {
		c := newResultCache(8, true)
		batch := ops[:4]

		_, _, hit, corrupted := c.Lookup(batch)
		assert.False(t, hit)
		assert.False(t, corrupted)

		storeBatch(t, c, batch)

		artifacts, _, hit, corrupted := c.Lookup(batch)
		require.True(t, hit)
		assert.False(t, corrupted)
		require.Len(t, artifacts, 4)
		assert.Equal(t, batch[0].Key(), artifacts[0].OperationKey)

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, int64(2), stats.Lookups)
		assert.Equal(t, 0.5, stats.HitRatio)
		assert.Equal(t, 1, stats.Size)
	})

	t.Run("HitReturnsIndependentSlice", func(t *testing.T) {
		c := newResultCache(8, true)
		batch := ops[:2]
		storeBatch(t, c, batch)

		first, _, hit, _ := c.Lookup(batch)
		require.True(t, hit)
		first[0].ID = "tampered"

		second, _, hit, _ := c.Lookup(batch)
		require.True(t, hit)
		assert.Equal(t, "artifact-"+batch[0].ID, second[0].ID)
	})

	t.Run("Disabled", func(t *testing.T) {
		c := newResultCache(8, false)
		batch := ops[:4]
		storeBatch(t, c, batch)

		_, _, hit, _ := c.Lookup(batch)
		assert.False(t, hit)

		stats := c.Stats()
		assert.False(t, stats.Enabled)
		assert.Equal(t, int64(0), stats.Lookups)
		assert.Equal(t, 0, stats.Size)
	})

	t.Run("FIFOEvictionAtCeiling", func(t *testing.T) {
		c := newResultCache(2, true)
		first := storeBatch(t, c, ops[0:1])
		storeBatch(t, c, ops[1:2])
		storeBatch(t, c, ops[2:3])

		stats := c.Stats()
		assert.Equal(t, 2, stats.Size)
		assert.Equal(t, int64(1), stats.Evictions)

		_, fp, hit, _ := c.Lookup(ops[0:1])
		assert.Equal(t, first, fp)
		assert.False(t, hit)
		_, _, hit, _ = c.Lookup(ops[1:2])
		assert.True(t, hit)
		_, _, hit, _ = c.Lookup(ops[2:3])
		assert.True(t, hit)
	})

	t.Run("EvictOldestKeepsNewest", func(t *testing.T) {
		c := newResultCache(8, true)
		for i := 0; i < 4; i++ {
			storeBatch(t, c, ops[i:i+1])
		}

		evicted := c.EvictOldest(1)
		assert.Equal(t, 3, evicted)
		assert.Equal(t, 1, c.Stats().Size)

		_, _, hit, _ := c.Lookup(ops[3:4])
		assert.True(t, hit)
		_, _, hit, _ = c.Lookup(ops[0:1])
		assert.False(t, hit)
	})

	t.Run("CorruptedEntryIsDroppedAndRecomputable", func(t *testing.T) {
		c := newResultCache(8, true)
		batch := ops[:3]
		fp := storeBatch(t, c, batch)

		c.entries[fp].operationKeys[0] = "tampered"

		_, _, hit, corrupted := c.Lookup(batch)
		assert.False(t, hit)
		assert.True(t, corrupted)

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Corruptions)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, 0, stats.Size)

		// The slot is reusable after the drop.
		storeBatch(t, c, batch)
		_, _, hit, corrupted = c.Lookup(batch)
		assert.True(t, hit)
		assert.False(t, corrupted)
	})

	t.Run("ClearKeepsCounters", func(t *testing.T) {
		c := newResultCache(8, true)
		batch := ops[:4]
		storeBatch(t, c, batch)
		_, _, hit, _ := c.Lookup(batch)
		require.True(t, hit)

		c.Clear()

		stats := c.Stats()
		assert.Equal(t, 0, stats.Size)
		assert.Equal(t, int64(1), stats.Hits)

		_, _, hit, _ = c.Lookup(batch)
		assert.False(t, hit)
	})

	t.Run("DuplicateStoreIgnored", func(t *testing.T) {
		c := newResultCache(8, true)
		batch := ops[:4]
		storeBatch(t, c, batch)
		storeBatch(t, c, batch)

		assert.Equal(t, 1, c.Stats().Size)
	})
}
