package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/rs/zerolog"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// namespace is the JSON-RPC namespace of the vesting service.
const namespace = "vesting"

// API defines the jsonrpc service module API
type API struct {
	Logger   zerolog.Logger
	Contract string
	Internal struct {
		BatchVesting func(ctx context.Context, contract string, msg vesting.BatchVestingMsg, fee vesting.Fee, memo string, funds sdk.Coins) (*vesting.ExecuteResult, error) `perm:"write"`
	}
}

var _ vesting.Contract = (*API)(nil)

// BatchVesting executes batch_vesting on the configured contract through the signing service.
func (api *API) BatchVesting(ctx context.Context, msg vesting.BatchVestingMsg, fee vesting.Fee, memo string, funds sdk.Coins) (*vesting.ExecuteResult, error) {
	api.Logger.Debug().Str("method", "BatchVesting").Str("contract", api.Contract).Int("num_records", len(msg.Records)).
		Uint64("gas", fee.Gas).Str("fee", fee.Amount.String()).Msg("Making RPC call")
	res, err := api.Internal.BatchVesting(ctx, api.Contract, msg, fee, memo, funds)
	if err != nil {
		// Peers without the error mapping only send text, so fall back to the message
		if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), context.Canceled.Error()) {
			api.Logger.Debug().Str("method", "BatchVesting").Msg("RPC call canceled due to context cancellation")
			return nil, context.Canceled
		}
		api.Logger.Debug().Err(err).Str("method", "BatchVesting").Msg("RPC call failed")
		return nil, err
	}
	if res != nil {
		api.Logger.Debug().Str("method", "BatchVesting").Str("txHash", res.TransactionHash).Int64("height", res.Height).Msg("RPC call successful")
	}
	return res, nil
}

// Client is the jsonrpc client
type Client struct {
	Contract API
	closer   jsonrpc.ClientCloser
}

// Close closes the connection to the signing service.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// NewClient creates a new Client with the given token as the authorization token.
func NewClient(ctx context.Context, logger zerolog.Logger, addr, token, contract string) (*Client, error) {
	authHeader := http.Header{}
	if token != "" {
		authHeader.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	return newClient(ctx, logger, addr, authHeader, contract)
}

func newClient(ctx context.Context, logger zerolog.Logger, addr string, authHeader http.Header, contract string) (*Client, error) {
	var client Client
	client.Contract.Logger = logger.With().Str("component", "contract_client").Logger()
	client.Contract.Contract = contract
	logger.Info().Str("addr", addr).Str("contract", contract).Msg("creating new client")

	closer, err := jsonrpc.NewMergeClient(ctx, addr, namespace, []interface{}{&client.Contract.Internal}, authHeader, jsonrpc.WithErrors(getKnownErrorsMapping()))
	if err != nil {
		return nil, fmt.Errorf("failed to create jsonrpc client: %w", err)
	}
	client.closer = closer

	return &client, nil
}
