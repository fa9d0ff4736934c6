package block

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/pkg/address"
	"github.com/orchestra-labs/vesting-batcher/pkg/config"
	"github.com/orchestra-labs/vesting-batcher/pkg/notify"
)

// Checkpointer persists run progress after every committed batch.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, cp vesting.Checkpoint) error
}

// Manager partitions vesting records into batches and submits them sequentially.
// A Manager must not run more than one submission at a time.
type Manager struct {
	contract       vesting.Contract
	config         config.Config
	logger         zerolog.Logger
	observer       notify.Observer
	isValidAddress func(string) bool
	checkpoints    Checkpointer
	runID          string
	now            func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the observer receiving lifecycle events.
func WithObserver(o notify.Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithCheckpoints persists progress of runs started by Run under runID.
func WithCheckpoints(c Checkpointer, runID string) Option {
	return func(m *Manager) {
		m.checkpoints = c
		m.runID = runID
	}
}

// WithAddressValidator replaces the bech32 validator derived from the chain prefix.
func WithAddressValidator(fn func(string) bool) Option {
	return func(m *Manager) {
		if fn != nil {
			m.isValidAddress = fn
		}
	}
}

// NewManager creates a Manager submitting through contract.
func NewManager(contract vesting.Contract, cfg config.Config, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		contract:       contract,
		config:         cfg,
		logger:         logger.With().Str("component", "batch_manager").Logger(),
		observer:       notify.Nop(),
		isValidAddress: address.Validator(cfg.Chain.AddressPrefix),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// runState is the position of the orchestrator inside the record sequence.
type runState struct {
	runID  string
	digest string
	next   int
	size   int
	number int
}

// Run normalizes recipients and submits them in batches of batchSize, starting at startFromBatch (1-based).
// batchSize <= 0 selects the configured default. On abort the error is a *vesting.RunError
// holding the batches committed so far.
func (m *Manager) Run(
	ctx context.Context,
	conf vesting.VestingConfiguration,
	recipients []vesting.VestingRecipient,
	batchSize int,
	startFromBatch int,
) ([]vesting.BatchResult, error) {
	records, dropped, err := Normalize(recipients, m.isValidAddress)
	if dropped > 0 {
		m.logger.Warn().Int("dropped", dropped).Msg("dropped recipients with invalid address or amount")
	}
	if err != nil {
		return nil, err
	}
	if err := m.validate(conf); err != nil {
		return nil, err
	}

	if batchSize <= 0 {
		batchSize = m.config.Submit.BatchSize
	}
	total := ceilDiv(len(records), batchSize)
	if startFromBatch < 1 || startFromBatch > total {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", vesting.ErrInvalidStartBatch, startFromBatch, total)
	}

	st := runState{
		runID:  m.runID,
		digest: RecordsDigest(records),
		next:   (startFromBatch - 1) * batchSize,
		size:   batchSize,
		number: startFromBatch,
	}

	m.emit(st.runID, notify.Event{
		Kind:         notify.EventRunStarted,
		Records:      len(records),
		Dropped:      dropped,
		TotalBatches: total,
		BatchSize:    batchSize,
	})

	results, err := m.run(ctx, conf, records, st, nil)
	m.emit(st.runID, notify.Event{Kind: notify.EventRunCompleted, Results: results, Err: err})
	return results, err
}

// Resume continues the run recorded in cp. The recipients must normalize to the same records.
// The returned results include those already stored in cp.
func (m *Manager) Resume(
	ctx context.Context,
	conf vesting.VestingConfiguration,
	recipients []vesting.VestingRecipient,
	cp vesting.Checkpoint,
) ([]vesting.BatchResult, error) {
	records, dropped, err := Normalize(recipients, m.isValidAddress)
	if err != nil {
		return nil, err
	}
	if err := m.validate(conf); err != nil {
		return nil, err
	}

	digest := RecordsDigest(records)
	if digest != cp.RecordsDigest || len(records) != cp.TotalRecords {
		return nil, fmt.Errorf("%w: run %s", vesting.ErrCheckpointMismatch, cp.RunID)
	}
	results := slices.Clone(cp.Results)
	if cp.Done() {
		m.logger.Info().Str("runID", cp.RunID).Msg("run already completed, nothing to resume")
		return results, nil
	}
	if cp.BatchSize < 1 || cp.NextBatch < 1 || cp.NextRecord < 0 {
		return nil, fmt.Errorf("%w: run %s has invalid progress", vesting.ErrCheckpointMismatch, cp.RunID)
	}

	st := runState{
		runID:  cp.RunID,
		digest: digest,
		next:   cp.NextRecord,
		size:   cp.BatchSize,
		number: cp.NextBatch,
	}

	m.logger.Info().Str("runID", cp.RunID).Int("nextBatch", cp.NextBatch).Int("nextRecord", cp.NextRecord).
		Msg("resuming vesting run")
	m.emit(st.runID, notify.Event{
		Kind:         notify.EventRunStarted,
		Records:      len(records),
		Dropped:      dropped,
		TotalBatches: st.number - 1 + ceilDiv(len(records)-st.next, st.size),
		BatchSize:    st.size,
		Results:      results,
	})

	results, err = m.run(ctx, conf, records, st, results)
	m.emit(st.runID, notify.Event{Kind: notify.EventRunCompleted, Results: results, Err: err})
	return results, err
}

// validate checks the vesting configuration and the submit settings the run depends on.
func (m *Manager) validate(conf vesting.VestingConfiguration) error {
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid submit configuration: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid vesting configuration: %w", err)
	}
	return nil
}

// run submits records from st onward. A batch failing with a gas status is retried over the
// remaining records with half the batch size, down to the configured floor.
func (m *Manager) run(
	ctx context.Context,
	conf vesting.VestingConfiguration,
	records []vesting.VestingRecord,
	st runState,
	results []vesting.BatchResult,
) ([]vesting.BatchResult, error) {
	m.saveCheckpoint(ctx, st, len(records), results)

	for st.next < len(records) {
		if err := ctx.Err(); err != nil {
			return results, &vesting.RunError{Batch: st.number, Results: results, Err: err}
		}

		end := min(st.next+st.size, len(records))
		b := batch{
			runID:   st.runID,
			number:  st.number,
			total:   st.number - 1 + ceilDiv(len(records)-st.next, st.size),
			first:   st.next,
			records: records[st.next:end],
		}

		res, err := m.submitBatch(ctx, conf, b)
		if err != nil {
			if next, ok := m.shrink(err, len(b.records)); ok {
				m.emit(st.runID, notify.Event{
					Kind:          notify.EventBatchSizeReduced,
					Batch:         b.number,
					PrevBatchSize: st.size,
					BatchSize:     next,
				})
				st.size = next
				m.saveCheckpoint(ctx, st, len(records), results)
				continue
			}
			return results, &vesting.RunError{Batch: b.number, Results: results, Err: err}
		}

		results = append(results, res)
		st.next = end
		st.number++
		m.saveCheckpoint(ctx, st, len(records), results)

		if st.next < len(records) {
			delay := m.config.Submit.InterBatchDelay
			m.emit(st.runID, notify.Event{Kind: notify.EventWaiting, Batch: st.number, Delay: delay})
			if err := waitForBackoffOrContext(ctx, delay); err != nil {
				return results, &vesting.RunError{Batch: st.number, Results: results, Err: err}
			}
		}
	}

	return results, nil
}

// shrink returns the next batch size after a failed batch of n records, or false when the
// failure is not size related or n is already at the floor.
func (m *Manager) shrink(err error, n int) (int, bool) {
	var batchErr *vesting.BatchError
	if !errors.As(err, &batchErr) || !batchErr.Code.ShrinksBatch() {
		return 0, false
	}
	floor := m.config.Submit.MinBatchSize
	if n <= floor {
		return 0, false
	}
	return max(n/2, floor), true
}

func (m *Manager) saveCheckpoint(ctx context.Context, st runState, total int, results []vesting.BatchResult) {
	if m.checkpoints == nil || st.runID == "" {
		return
	}
	cp := vesting.Checkpoint{
		RunID:         st.runID,
		RecordsDigest: st.digest,
		NextRecord:    st.next,
		BatchSize:     st.size,
		NextBatch:     st.number,
		TotalRecords:  total,
		Results:       slices.Clone(results),
		UpdatedAt:     m.now().UTC(),
	}
	if err := m.checkpoints.SaveCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
		m.logger.Warn().Err(err).Str("runID", st.runID).Int("nextBatch", st.number).Msg("failed to save checkpoint")
	}
}

func (m *Manager) emit(runID string, ev notify.Event) {
	ev.RunID = runID
	if ev.Time.IsZero() {
		ev.Time = m.now()
	}
	m.observer.Notify(ev)
}

// RecordsDigest returns a hex SHA-256 digest identifying an ordered record sequence.
func RecordsDigest(records []vesting.VestingRecord) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(r.Address))
		h.Write([]byte{0})
		h.Write([]byte(r.Amount))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// waitForBackoffOrContext waits for the specified backoff duration or until the context is done.
func waitForBackoffOrContext(ctx context.Context, backoff time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}
