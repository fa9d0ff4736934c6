package vesting

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Contract is the vesting orchestrator contract as seen through a signing client.
// Signing, sequence management and broadcasting are the implementation's concern.
type Contract interface {
	// BatchVesting executes one batch_vesting message and waits for inclusion.
	BatchVesting(ctx context.Context, msg BatchVestingMsg, fee Fee, memo string, funds sdk.Coins) (*ExecuteResult, error)
}
