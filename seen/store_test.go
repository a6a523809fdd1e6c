package seen

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSnapshot_EmptyPartition verifies a fresh partition yields an empty
// snapshot
func TestSnapshot_EmptyPartition(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Snapshot("page1/US")
	require.NoError(t, err)
	assert.Empty(t, snap)
}

// TestPutAllAndSnapshot verifies entries round-trip through the store
func TestPutAllAndSnapshot(t *testing.T) {
	store := newTestStore(t)

	first := time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC)
	last := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	entries := creative.Snapshot{
		"ad_1": {ContentHash: "h1", FirstSeen: first, LastSeen: last},
		"ad_2": {ContentHash: "h2", FirstSeen: first, LastSeen: last},
	}

	require.NoError(t, store.PutAll("page1/US", entries))

	snap, err := store.Snapshot("page1/US")
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "h1", snap["ad_1"].ContentHash)
	assert.True(t, snap["ad_1"].FirstSeen.Equal(first))
	assert.True(t, snap["ad_1"].LastSeen.Equal(last))
}

// TestPutAll_Upserts verifies re-putting an id replaces its entry and
// keeps the union of old and new
func TestPutAll_Upserts(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().UTC()

	require.NoError(t, store.PutAll("p", creative.Snapshot{
		"a": {ContentHash: "old", FirstSeen: ts, LastSeen: ts},
		"b": {ContentHash: "keep", FirstSeen: ts, LastSeen: ts},
	}))
	require.NoError(t, store.PutAll("p", creative.Snapshot{
		"a": {ContentHash: "new", FirstSeen: ts, LastSeen: ts},
		"c": {ContentHash: "added", FirstSeen: ts, LastSeen: ts},
	}))

	snap, err := store.Snapshot("p")
	require.NoError(t, err)
	require.Len(t, snap, 3)
	assert.Equal(t, "new", snap["a"].ContentHash)
	assert.Equal(t, "keep", snap["b"].ContentHash)
	assert.Equal(t, "added", snap["c"].ContentHash)
}

// TestSnapshot_PartitionIsolation verifies partitions don't leak into
// each other
func TestSnapshot_PartitionIsolation(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().UTC()

	require.NoError(t, store.PutAll("page1/US", creative.Snapshot{
		"a": {ContentHash: "h", FirstSeen: ts, LastSeen: ts},
	}))

	snap, err := store.Snapshot("page1/GB")
	require.NoError(t, err)
	assert.Empty(t, snap)
}

// TestAcquireLock_Conflict verifies a held lock blocks other runs
func TestAcquireLock_Conflict(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AcquireLock("page1/US", "run-1"))

	err := store.AcquireLock("page1/US", "run-2")
	assert.ErrorIs(t, err, ErrPartitionLocked)

	// A different partition is independent.
	assert.NoError(t, store.AcquireLock("page1/GB", "run-2"))
}

// TestReleaseLock verifies release frees the partition for the next run
func TestReleaseLock(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AcquireLock("p", "run-1"))
	require.NoError(t, store.ReleaseLock("p", "run-1"))
	assert.NoError(t, store.AcquireLock("p", "run-2"))
}

// TestReleaseLock_WrongHolder verifies only the holder can release
func TestReleaseLock_WrongHolder(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AcquireLock("p", "run-1"))
	assert.ErrorIs(t, store.ReleaseLock("p", "run-2"), ErrNotLockHolder)

	// The lock is still held by run-1.
	assert.ErrorIs(t, store.AcquireLock("p", "run-3"), ErrPartitionLocked)
}

// TestAcquireLock_ExpiredTakeover verifies a lock past its TTL can be
// taken over by a new run
func TestAcquireLock_ExpiredTakeover(t *testing.T) {
	store := newTestStore(t)
	store.SetLockTTL(10 * time.Millisecond)

	require.NoError(t, store.AcquireLock("p", "crashed-run"))
	time.Sleep(20 * time.Millisecond)

	assert.NoError(t, store.AcquireLock("p", "run-2"))
}
