package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	ds "github.com/ipfs/go-datastore"
	ktds "github.com/ipfs/go-datastore/keytransform"
	"github.com/ipfs/go-datastore/query"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a run id.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

func newPrefixKV(kvStore ds.Batching, prefix string) ds.Batching {
	return ktds.Wrap(kvStore, ktds.PrefixTransform{Prefix: ds.NewKey(prefix)})
}

// CheckpointStore persists run checkpoints as msgpack documents.
type CheckpointStore struct {
	db ds.Batching
}

// NewCheckpointStore wraps db so that all checkpoint keys live under CheckpointPrefix.
func NewCheckpointStore(db ds.Batching) *CheckpointStore {
	return &CheckpointStore{db: newPrefixKV(db, CheckpointPrefix)}
}

// SaveCheckpoint stores cp under its run id and marks the run as the latest one.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp vesting.Checkpoint) error {
	if cp.RunID == "" {
		return errors.New("checkpoint run id must be set")
	}
	if strings.Contains(cp.RunID, "/") {
		return fmt.Errorf("invalid run id %q", cp.RunID)
	}

	bz, err := msgpack.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	batch, err := s.db.Batch(ctx)
	if err != nil {
		return fmt.Errorf("failed to create a new batch: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getCheckpointKey(cp.RunID)), bz); err != nil {
		return fmt.Errorf("failed to put checkpoint: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getMetaKey(LatestRunKey)), []byte(cp.RunID)); err != nil {
		return fmt.Errorf("failed to put latest run id: %w", err)
	}
	return batch.Commit(ctx)
}

// LoadCheckpoint returns the checkpoint of runID.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, runID string) (vesting.Checkpoint, error) {
	bz, err := s.db.Get(ctx, ds.NewKey(getCheckpointKey(runID)))
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return vesting.Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, runID)
		}
		return vesting.Checkpoint{}, fmt.Errorf("failed to load checkpoint %s: %w", runID, err)
	}

	var cp vesting.Checkpoint
	if err := msgpack.Unmarshal(bz, &cp); err != nil {
		return vesting.Checkpoint{}, fmt.Errorf("failed to decode checkpoint %s: %w", runID, err)
	}
	return cp, nil
}

// LatestRunID returns the id of the most recently saved run.
func (s *CheckpointStore) LatestRunID(ctx context.Context) (string, error) {
	bz, err := s.db.Get(ctx, ds.NewKey(getMetaKey(LatestRunKey)))
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return "", ErrCheckpointNotFound
		}
		return "", fmt.Errorf("failed to load latest run id: %w", err)
	}
	return string(bz), nil
}

// ListCheckpoints returns every stored checkpoint, most recently updated first.
func (s *CheckpointStore) ListCheckpoints(ctx context.Context) ([]vesting.Checkpoint, error) {
	results, err := s.db.Query(ctx, query.Query{Prefix: GenerateKey([]string{checkpointPrefix})})
	if err != nil {
		return nil, fmt.Errorf("error querying datastore: %w", err)
	}
	defer results.Close()

	var checkpoints []vesting.Checkpoint
	for result := range results.Next() {
		if result.Error != nil {
			return nil, fmt.Errorf("error reading checkpoint entry: %w", result.Error)
		}
		var cp vesting.Checkpoint
		if err := msgpack.Unmarshal(result.Value, &cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", result.Key, err)
		}
		checkpoints = append(checkpoints, cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].UpdatedAt.After(checkpoints[j].UpdatedAt)
	})
	return checkpoints, nil
}

// DeleteCheckpoint removes the checkpoint of runID. Deleting a missing checkpoint is not an error.
func (s *CheckpointStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	if err := s.db.Delete(ctx, ds.NewKey(getCheckpointKey(runID))); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", runID, err)
	}

	latest, err := s.LatestRunID(ctx)
	if err == nil && latest == runID {
		if err := s.db.Delete(ctx, ds.NewKey(getMetaKey(LatestRunKey))); err != nil {
			return fmt.Errorf("failed to clear latest run id: %w", err)
		}
	}
	return nil
}

// Close closes the underlying datastore.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
