package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

const (
	// DefaultBaseGas is the gas consumed by an empty batch_vesting execution.
	DefaultBaseGas = 400_000
	// DefaultPerRecordGas is the gas consumed per instantiated vesting account.
	DefaultPerRecordGas = 150_000
	// DefaultBlockMaxGas is the block gas cap.
	DefaultBlockMaxGas = 100_000_000
	// DefaultMinGasPrice is the minimum gas price accepted by the node.
	DefaultMinGasPrice = "0.025note"
)

// Tx is an executed batch_vesting transaction.
type Tx struct {
	Hash      string
	Height    int64
	Memo      string
	Records   []vesting.VestingRecord
	GasWanted uint64
	GasUsed   uint64
	Time      time.Time
}

// LocalContract is an in-memory vesting orchestrator contract. Not production ready! Intended only for testing!
//
// Gas is metered per record and the node's fee, gas cap and indexing rules are enforced with the
// error messages a cosmos-sdk node reports.
type LocalContract struct {
	mu               *sync.Mutex // protects height and txs
	baseGas          uint64
	perRecordGas     uint64
	blockMaxGas      uint64
	minGasPrice      sdk.DecCoin
	indexingDisabled bool
	height           int64
	txs              []Tx

	logger zerolog.Logger
}

// WithGasCosts sets the metered gas of an execution.
func WithGasCosts(base, perRecord uint64) func(*LocalContract) *LocalContract {
	return func(c *LocalContract) *LocalContract {
		c.baseGas = base
		c.perRecordGas = perRecord
		return c
	}
}

// WithBlockMaxGas sets the block gas cap.
func WithBlockMaxGas(gas uint64) func(*LocalContract) *LocalContract {
	return func(c *LocalContract) *LocalContract {
		c.blockMaxGas = gas
		return c
	}
}

// WithMinGasPrice sets the minimum accepted gas price.
func WithMinGasPrice(price sdk.DecCoin) func(*LocalContract) *LocalContract {
	return func(c *LocalContract) *LocalContract {
		c.minGasPrice = price
		return c
	}
}

// WithIndexingDisabled makes every accepted transaction report that indexing is disabled.
func WithIndexingDisabled() func(*LocalContract) *LocalContract {
	return func(c *LocalContract) *LocalContract {
		c.indexingDisabled = true
		return c
	}
}

// NewLocalContract creates a new LocalContract.
func NewLocalContract(logger zerolog.Logger, opts ...func(*LocalContract) *LocalContract) *LocalContract {
	c := &LocalContract{
		mu:           new(sync.Mutex),
		baseGas:      DefaultBaseGas,
		perRecordGas: DefaultPerRecordGas,
		blockMaxGas:  DefaultBlockMaxGas,
		minGasPrice:  defaultMinGasPrice(),
		logger:       logger,
	}
	for _, f := range opts {
		c = f(c)
	}
	c.logger.Info().Uint64("baseGas", c.baseGas).Uint64("perRecordGas", c.perRecordGas).
		Uint64("blockMaxGas", c.blockMaxGas).Str("minGasPrice", c.minGasPrice.String()).
		Bool("indexingDisabled", c.indexingDisabled).Msg("NewLocalContract: initialized LocalContract")
	return c
}

var _ vesting.Contract = &LocalContract{}

// BatchVesting executes the batch if fee, gas and funds are sufficient.
func (c *LocalContract) BatchVesting(ctx context.Context, msg vesting.BatchVestingMsg, fee vesting.Fee, memo string, funds sdk.Coins) (*vesting.ExecuteResult, error) {
	c.logger.Debug().Int("num_records", len(msg.Records)).Uint64("gas", fee.Gas).Str("fee", fee.Amount.String()).Msg("BatchVesting called")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := msg.Configuration.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vesting configuration: %w", err)
	}
	if len(msg.Records) == 0 {
		return nil, errors.New("batch_vesting requires at least one record")
	}

	if fee.Gas > c.blockMaxGas {
		return nil, fmt.Errorf("tx gas limit %d exceeds block max gas %d", fee.Gas, c.blockMaxGas)
	}

	required := c.minGasPrice.Amount.MulInt64(int64(fee.Gas)).Ceil().TruncateInt()
	if got := fee.Amount.AmountOf(c.minGasPrice.Denom); got.LT(required) {
		return nil, fmt.Errorf("insufficient fees; got: %s required: %s: insufficient fee",
			fee.Amount.String(), sdk.NewCoin(c.minGasPrice.Denom, required).String())
	}

	total := sdkmath.ZeroInt()
	for _, r := range msg.Records {
		amount, ok := sdkmath.NewIntFromString(r.Amount)
		if !ok || amount.IsNegative() {
			return nil, fmt.Errorf("invalid amount %q for %s", r.Amount, r.Address)
		}
		total = total.Add(amount)
	}
	if sent := funds.AmountOf(msg.Configuration.Denom); !sent.Equal(total) {
		return nil, fmt.Errorf("funds mismatch: sent %s%s, records total %s%s",
			sent, msg.Configuration.Denom, total, msg.Configuration.Denom)
	}

	used := c.baseGas + c.perRecordGas*uint64(len(msg.Records))
	if used > fee.Gas {
		return nil, fmt.Errorf("out of gas in location: batch_vesting; gasWanted: %d, gasUsed: %d: out of gas", fee.Gas, used)
	}

	c.mu.Lock()
	c.height++
	tx := Tx{
		Height:    c.height,
		Memo:      memo,
		Records:   append([]vesting.VestingRecord(nil), msg.Records...),
		GasWanted: fee.Gas,
		GasUsed:   used,
		Time:      time.Now(),
	}
	tx.Hash = txHash(tx)
	c.txs = append(c.txs, tx)
	c.mu.Unlock()

	if c.indexingDisabled {
		c.logger.Debug().Str("txHash", tx.Hash).Msg("BatchVesting: indexing disabled")
		return nil, fmt.Errorf("broadcast tx %s: %w", strings.ToLower(tx.Hash), vesting.ErrIndexingDisabled)
	}

	c.logger.Debug().Str("txHash", tx.Hash).Int64("height", tx.Height).Uint64("gasUsed", used).Msg("BatchVesting successful")
	return &vesting.ExecuteResult{
		TransactionHash: tx.Hash,
		Height:          tx.Height,
		GasWanted:       fee.Gas,
		GasUsed:         used,
	}, nil
}

func defaultMinGasPrice() sdk.DecCoin {
	price, err := sdk.ParseDecCoin(DefaultMinGasPrice)
	if err != nil {
		panic(err)
	}
	return price
}

// Transactions returns the executed transactions in order.
func (c *LocalContract) Transactions() []Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tx(nil), c.txs...)
}

func txHash(tx Tx) string {
	h := sha256.New()
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], uint64(tx.Height))
	h.Write(height[:])
	h.Write([]byte(tx.Memo))
	for _, r := range tx.Records {
		h.Write([]byte(r.Address))
		h.Write([]byte(r.Amount))
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}
