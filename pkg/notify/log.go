package notify

import (
	"github.com/rs/zerolog"
)

// LogObserver reports lifecycle events through zerolog.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify implements Observer.
func (o *LogObserver) Notify(ev Event) {
	switch ev.Kind {
	case EventRunStarted:
		o.logger.Info().Str("runID", ev.RunID).Int("records", ev.Records).Int("dropped", ev.Dropped).
			Int("batches", ev.TotalBatches).Int("batchSize", ev.BatchSize).Msg("vesting run started")
	case EventBatchStarted:
		o.logger.Info().Int("batch", ev.Batch).Int("totalBatches", ev.TotalBatches).Int("records", ev.BatchSize).
			Msg("Tx in Progress: waiting for transaction to be included in the block")
	case EventBatchRetrying:
		o.logger.Warn().Int("batch", ev.Batch).Str("status", ev.Code.String()).Uint64("gasLimit", ev.GasPlan.GasLimit).
			Str("fee", ev.GasPlan.FeeAmount.String()+ev.GasPlan.FeeDenom).Msg("retrying batch with adjusted gas")
	case EventBatchSucceeded:
		if ev.Result == nil {
			return
		}
		o.logger.Info().Int("batch", ev.Batch).Str("txHash", ev.Result.TransactionHash).
			Bool("indexingDisabled", ev.Result.IndexingDisabled).Msg("Tx Successful!")
	case EventBatchFailed:
		o.logger.Error().Err(ev.Err).Int("batch", ev.Batch).Str("status", ev.Code.String()).Msg("Tx Failed!")
	case EventBatchSizeReduced:
		o.logger.Warn().Int("batch", ev.Batch).Int("from", ev.PrevBatchSize).Int("to", ev.BatchSize).
			Msg("reducing batch size after gas failure")
	case EventWaiting:
		o.logger.Debug().Dur("delay", ev.Delay).Msg("waiting before next batch")
	case EventRunCompleted:
		if ev.Err != nil {
			o.logger.Error().Err(ev.Err).Int("committed", len(ev.Results)).Msg("vesting run aborted")
			return
		}
		o.logger.Info().Int("committed", len(ev.Results)).Msg("vesting run completed")
	}
}
