package block

import (
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/pkg/config"
)

// EstimateGas computes the gas limit and fee of a batch of batchSize records.
// gasPrice has the form "<decimal><denom>", e.g. "0.025note"; the fee is rounded up.
func EstimateGas(batchSize int, policy config.GasPolicy, gasPrice string) (vesting.GasPlan, error) {
	if batchSize < 1 {
		return vesting.GasPlan{}, fmt.Errorf("%w: %d", vesting.ErrInvalidBatchSize, batchSize)
	}
	if err := policy.Validate(); err != nil {
		return vesting.GasPlan{}, err
	}
	price, err := sdk.ParseDecCoin(gasPrice)
	if err != nil {
		return vesting.GasPlan{}, fmt.Errorf("invalid gas price %q: %w", gasPrice, err)
	}

	multiplier, err := decFromFloat(policy.BufferMultiplier)
	if err != nil {
		return vesting.GasPlan{}, fmt.Errorf("invalid buffer multiplier %v: %w", policy.BufferMultiplier, err)
	}

	raw := policy.BaseGas + policy.PerRecordGas*uint64(batchSize)
	buffered := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(raw)).Mul(multiplier).Ceil().TruncateInt()
	limit := policy.MaxGas
	if buffered.LT(sdkmath.NewIntFromUint64(policy.MaxGas)) {
		limit = buffered.Uint64()
	}

	fee := price.Amount.MulInt64(int64(limit)).Ceil().TruncateInt()

	return vesting.GasPlan{
		GasLimit:  limit,
		FeeAmount: fee,
		FeeDenom:  price.Denom,
	}, nil
}

// decFromFloat converts a configured multiplier using its shortest decimal representation,
// so 1.1 becomes exactly 1.1.
func decFromFloat(f float64) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(f, 'f', -1, 64))
}
