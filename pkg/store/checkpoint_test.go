package store

import (
	"testing"
	"time"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

func newTestStore(t *testing.T) *CheckpointStore {
	t.Helper()
	return NewCheckpointStore(dssync.MutexWrap(ds.NewMapDatastore()))
}

func testCheckpoint(runID string, updated time.Time) vesting.Checkpoint {
	return vesting.Checkpoint{
		RunID:         runID,
		RecordsDigest: "abcd",
		NextRecord:    10,
		BatchSize:     5,
		NextBatch:     3,
		TotalRecords:  25,
		Results: []vesting.BatchResult{
			{BatchNumber: 1, TransactionHash: "AA", Records: 5, GasLimit: 2_000_000, Attempts: 1},
			{BatchNumber: 2, TransactionHash: "indexing-disabled-batch-2-1", FirstRecord: 5, Records: 5, IndexingDisabled: true},
		},
		UpdatedAt: updated,
	}
}

func TestCheckpointStore_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := testContext(t)

	cp := testCheckpoint("run-1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveCheckpoint(ctx, cp))

	loaded, err := s.LoadCheckpoint(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, loaded.RunID)
	assert.Equal(t, cp.NextBatch, loaded.NextBatch)
	assert.Equal(t, cp.Results, loaded.Results)
	assert.True(t, cp.UpdatedAt.Equal(loaded.UpdatedAt))

	latest, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest)

	cp.NextBatch = 4
	require.NoError(t, s.SaveCheckpoint(ctx, cp))
	loaded, err = s.LoadCheckpoint(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.NextBatch)
}

func TestCheckpointStore_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadCheckpoint(testContext(t), "missing")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	_, err = s.LatestRunID(testContext(t))
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestCheckpointStore_InvalidRunID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveCheckpoint(testContext(t), vesting.Checkpoint{}))
	assert.Error(t, s.SaveCheckpoint(testContext(t), vesting.Checkpoint{RunID: "a/b"}))
}

func TestCheckpointStore_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := testContext(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCheckpoint(ctx, testCheckpoint("old", base)))
	require.NoError(t, s.SaveCheckpoint(ctx, testCheckpoint("new", base.Add(time.Hour))))

	list, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].RunID)
	assert.Equal(t, "old", list[1].RunID)

	require.NoError(t, s.DeleteCheckpoint(ctx, "new"))
	_, err = s.LatestRunID(ctx)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	list, err = s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "old", list[0].RunID)

	require.NoError(t, s.DeleteCheckpoint(ctx, "never-saved"))
}

func TestCheckpointStore_Prefixed(t *testing.T) {
	base := dssync.MutexWrap(ds.NewMapDatastore())
	require.NoError(t, base.Put(testContext(t), ds.NewKey("/unrelated"), []byte("x")))

	s := NewCheckpointStore(base)
	require.NoError(t, s.SaveCheckpoint(testContext(t), testCheckpoint("run", time.Now())))

	has, err := base.Has(testContext(t), ds.NewKey(GenerateKey([]string{CheckpointPrefix, checkpointPrefix, "run"})))
	require.NoError(t, err)
	assert.True(t, has)

	list, err := s.ListCheckpoints(testContext(t))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDefaultKVStore(t *testing.T) {
	root := t.TempDir()
	db, err := NewDefaultKVStore(root, "data", "vesting")
	require.NoError(t, err)

	s := NewCheckpointStore(db)
	require.NoError(t, s.SaveCheckpoint(testContext(t), testCheckpoint("disk", time.Now())))
	loaded, err := s.LoadCheckpoint(testContext(t), "disk")
	require.NoError(t, err)
	assert.Equal(t, "disk", loaded.RunID)
	require.NoError(t, s.Close())
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "/c/run-1", getCheckpointKey("run-1"))
	assert.Equal(t, "/m/latest-run", getMetaKey(LatestRunKey))
	assert.Equal(t, "/a/b", GenerateKey([]string{"a", "", "b"}))
}
