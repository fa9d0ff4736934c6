package types

import (
	"context"
	"errors"
	"regexp"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// txHashPattern matches a CometBFT transaction hash embedded in an error message.
var txHashPattern = regexp.MustCompile(`\b[0-9A-Fa-f]{64}\b`)

// ClassifyError maps a contract error onto a status code.
// A *vesting.CodedError keeps its code. Structured errors are matched next; errors from
// peers that only send text are classified by message.
func ClassifyError(err error) vesting.StatusCode {
	var coded *vesting.CodedError
	switch {
	case err == nil:
		return vesting.StatusSuccess
	case errors.As(err, &coded) && coded.Code != vesting.StatusUnknown:
		return coded.Code
	case errors.Is(err, context.Canceled):
		return vesting.StatusContextCanceled
	case errors.Is(err, vesting.ErrIndexingDisabled):
		return vesting.StatusIndexingDisabled
	case errors.Is(err, vesting.ErrExceedsBlockMaxGas):
		return vesting.StatusExceedsBlockMaxGas
	case errors.Is(err, vesting.ErrOutOfGas):
		return vesting.StatusOutOfGas
	case errors.Is(err, vesting.ErrInsufficientFees):
		return vesting.StatusInsufficientFees
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, vesting.ErrIndexingDisabled.Error()):
		return vesting.StatusIndexingDisabled
	case strings.Contains(msg, vesting.ErrExceedsBlockMaxGas.Error()):
		return vesting.StatusExceedsBlockMaxGas
	case strings.Contains(msg, vesting.ErrOutOfGas.Error()):
		return vesting.StatusOutOfGas
	case strings.Contains(msg, vesting.ErrInsufficientFees.Error()):
		return vesting.StatusInsufficientFees
	case strings.Contains(msg, context.Canceled.Error()):
		return vesting.StatusContextCanceled
	}
	return vesting.StatusError
}

// SubmitWithHelpers performs one batch_vesting call and maps the outcome to a ResultSubmit.
func SubmitWithHelpers(
	ctx context.Context,
	contract vesting.Contract,
	logger zerolog.Logger,
	msg vesting.BatchVestingMsg,
	fee vesting.Fee,
	memo string,
	funds sdk.Coins,
) vesting.ResultSubmit {
	res, err := contract.BatchVesting(ctx, msg, fee, memo, funds)
	if err != nil {
		status := ClassifyError(err)
		if status == vesting.StatusIndexingDisabled {
			hash := txHashPattern.FindString(err.Error())
			logger.Warn().Str("txHash", hash).Msg("transaction broadcast but indexing is disabled on the node")
			return vesting.ResultSubmit{
				Code:    vesting.StatusIndexingDisabled,
				Message: err.Error(),
				TxHash:  strings.ToUpper(hash),
			}
		}
		if status == vesting.StatusContextCanceled {
			logger.Debug().Msg("contract submission canceled via helper due to context cancellation")
		} else {
			logger.Error().Err(err).Str("status", status.String()).Msg("contract submission failed via helper")
		}
		return vesting.ResultSubmit{
			Code:    status,
			Message: "failed to execute batch vesting: " + err.Error(),
			Err:     err,
		}
	}

	if res == nil || res.TransactionHash == "" {
		logger.Warn().Msg("contract submission via helper returned no transaction hash")
		return vesting.ResultSubmit{
			Code:    vesting.StatusError,
			Message: vesting.ErrNoTransactionHash.Error(),
			Err:     vesting.ErrNoTransactionHash,
		}
	}

	logger.Debug().Str("txHash", res.TransactionHash).Int64("height", res.Height).Msg("contract submission successful via helper")
	return vesting.ResultSubmit{
		Code:    vesting.StatusSuccess,
		TxHash:  res.TransactionHash,
		Height:  res.Height,
		GasUsed: res.GasUsed,
	}
}
