package block

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/pkg/config"
	"github.com/orchestra-labs/vesting-batcher/pkg/notify"
	"github.com/orchestra-labs/vesting-batcher/types"
)

// batch is a contiguous slice of the normalized records submitted as one transaction.
type batch struct {
	runID   string
	number  int
	total   int
	first   int
	records []vesting.VestingRecord
}

// retryStrategy tracks gas escalation for a single batch.
// Each recoverable status is retried at most once.
type retryStrategy struct {
	attempt         int
	policy          config.GasPolicy
	retryPolicy     config.GasPolicy
	gasPrice        string
	priceMultiplier float64
	retried         map[vesting.StatusCode]bool
}

// newRetryStrategy creates a retryStrategy starting from the initial gas policy and price.
func newRetryStrategy(cfg config.SubmitConfig) *retryStrategy {
	return &retryStrategy{
		attempt:         0,
		policy:          cfg.InitialGas,
		retryPolicy:     cfg.RetryGas,
		gasPrice:        cfg.GasPrice,
		priceMultiplier: cfg.GasPriceMultiplier,
		retried:         make(map[vesting.StatusCode]bool),
	}
}

// NextAttempt increments the attempt counter
func (r *retryStrategy) NextAttempt() {
	r.attempt++
}

// ShouldRetry reports whether code is recoverable and has not been retried yet.
func (r *retryStrategy) ShouldRetry(code vesting.StatusCode) bool {
	return code.Retryable() && !r.retried[code]
}

// Escalate adjusts the gas policy or price for the retry of code.
func (r *retryStrategy) Escalate(code vesting.StatusCode) error {
	r.retried[code] = true

	switch code {
	case vesting.StatusOutOfGas:
		r.policy = r.retryPolicy
	case vesting.StatusInsufficientFees:
		price, err := sdk.ParseDecCoin(r.gasPrice)
		if err != nil {
			return fmt.Errorf("invalid gas price %q: %w", r.gasPrice, err)
		}
		multiplier, err := decFromFloat(r.priceMultiplier)
		if err != nil {
			return fmt.Errorf("invalid gas price multiplier %v: %w", r.priceMultiplier, err)
		}
		r.gasPrice = sdk.NewDecCoinFromDec(price.Denom, price.Amount.Mul(multiplier)).String()
	}
	return nil
}

// submitBatch submits b, retrying once per recoverable status with escalated gas or price.
// A terminal failure is returned as *vesting.BatchError.
func (m *Manager) submitBatch(ctx context.Context, conf vesting.VestingConfiguration, b batch) (vesting.BatchResult, error) {
	funds, err := batchFunds(b.records, conf.Denom)
	if err != nil {
		return vesting.BatchResult{}, &vesting.BatchError{Batch: b.number, Code: vesting.StatusError, Err: err}
	}
	msg := vesting.BatchVestingMsg{Configuration: conf, Records: b.records}
	memo := fmt.Sprintf("%s batch %d/%d", conf.TitlePrefix, b.number, b.total)

	rs := newRetryStrategy(m.config.Submit)
	plan, err := EstimateGas(len(b.records), rs.policy, rs.gasPrice)
	if err != nil {
		return vesting.BatchResult{}, &vesting.BatchError{Batch: b.number, Code: vesting.StatusError, Err: err}
	}

	m.emit(b.runID, notify.Event{
		Kind:         notify.EventBatchStarted,
		Batch:        b.number,
		TotalBatches: b.total,
		BatchSize:    len(b.records),
		GasPlan:      plan,
	})

	for {
		rs.NextAttempt()

		submitCtx, cancel := m.submissionContext(ctx)
		res := types.SubmitWithHelpers(submitCtx, m.contract, m.logger, msg, plan.Fee(), memo, funds)
		cancel()

		switch {
		case res.Code.Committed():
			result := vesting.BatchResult{
				BatchNumber:      b.number,
				TransactionHash:  res.TxHash,
				FirstRecord:      b.first,
				Records:          len(b.records),
				GasLimit:         plan.GasLimit,
				Attempts:         rs.attempt,
				IndexingDisabled: res.Code == vesting.StatusIndexingDisabled,
			}
			if result.TransactionHash == "" {
				result.TransactionHash = fmt.Sprintf("indexing-disabled-batch-%d-%d", b.number, m.now().UnixMilli())
			}
			m.emit(b.runID, notify.Event{
				Kind:         notify.EventBatchSucceeded,
				Batch:        b.number,
				TotalBatches: b.total,
				BatchSize:    len(b.records),
				Code:         res.Code,
				GasPlan:      plan,
				Result:       &result,
			})
			return result, nil

		case rs.ShouldRetry(res.Code):
			if err := rs.Escalate(res.Code); err != nil {
				return vesting.BatchResult{}, m.failBatch(b, res.Code, rs.attempt, err)
			}
			plan, err = EstimateGas(len(b.records), rs.policy, rs.gasPrice)
			if err != nil {
				return vesting.BatchResult{}, m.failBatch(b, res.Code, rs.attempt, err)
			}
			m.emit(b.runID, notify.Event{
				Kind:         notify.EventBatchRetrying,
				Batch:        b.number,
				TotalBatches: b.total,
				BatchSize:    len(b.records),
				Code:         res.Code,
				GasPlan:      plan,
				Err:          res.Err,
			})

		default:
			return vesting.BatchResult{}, m.failBatch(b, res.Code, rs.attempt, res.Err)
		}
	}
}

func (m *Manager) failBatch(b batch, code vesting.StatusCode, attempts int, err error) error {
	batchErr := &vesting.BatchError{Batch: b.number, Code: code, Attempts: attempts, Err: err}
	m.emit(b.runID, notify.Event{
		Kind:         notify.EventBatchFailed,
		Batch:        b.number,
		TotalBatches: b.total,
		BatchSize:    len(b.records),
		Code:         code,
		Err:          batchErr,
	})
	return batchErr
}

func (m *Manager) submissionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.Submit.Timeout > 0 {
		return context.WithTimeout(ctx, m.config.Submit.Timeout)
	}
	return context.WithCancel(ctx)
}

// batchFunds sums the record amounts into the coins attached to the transaction.
func batchFunds(records []vesting.VestingRecord, denom string) (sdk.Coins, error) {
	total := sdkmath.ZeroInt()
	for _, r := range records {
		amount, ok := sdkmath.NewIntFromString(r.Amount)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for %s", r.Amount, r.Address)
		}
		total = total.Add(amount)
	}
	return sdk.NewCoins(sdk.NewCoin(denom, total)), nil
}
