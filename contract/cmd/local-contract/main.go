package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/orchestra-labs/vesting-batcher/contract/jsonrpc"
	"github.com/orchestra-labs/vesting-batcher/contract/local"
)

const (
	defaultHost = "localhost"
	defaultPort = "7990"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		host             string
		port             string
		listenAll        bool
		contract         string
		token            string
		baseGas          uint64
		perRecordGas     uint64
		blockMaxGas      uint64
		minGasPrice      string
		indexingDisabled bool
	)

	cmd := &cobra.Command{
		Use:          "local-contract",
		Short:        "Serve an in-memory vesting orchestrator contract over JSON-RPC",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listenAll {
				host = "0.0.0.0"
			}

			price, err := sdk.ParseDecCoin(minGasPrice)
			if err != nil {
				return fmt.Errorf("invalid min gas price %q: %w", minGasPrice, err)
			}

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "contract").Logger()

			opts := []func(*local.LocalContract) *local.LocalContract{
				local.WithGasCosts(baseGas, perRecordGas),
				local.WithBlockMaxGas(blockMaxGas),
				local.WithMinGasPrice(price),
			}
			if indexingDisabled {
				opts = append(opts, local.WithIndexingDisabled())
			}
			impl := local.NewLocalContract(logger, opts...)

			srv := jsonrpc.NewServer(logger, host, port, contract, token, impl)
			if err := srv.Start(cmd.Context()); err != nil {
				return fmt.Errorf("error while serving: %w", err)
			}
			logger.Info().Str("addr", srv.Addr()).Str("contract", contract).Msg("Listening on")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&port, "port", defaultPort, "listening port")
	flags.StringVar(&host, "host", defaultHost, "listening address")
	flags.BoolVar(&listenAll, "listen-all", false, "listen on all network interfaces (0.0.0.0) instead of just localhost")
	flags.StringVar(&contract, "contract", "", "only accept calls for this contract address (any when empty)")
	flags.StringVar(&token, "auth-token", os.Getenv("VESTING_CHAIN_AUTH_TOKEN"), "require this bearer token")
	flags.Uint64Var(&baseGas, "base-gas", local.DefaultBaseGas, "gas used by an empty batch")
	flags.Uint64Var(&perRecordGas, "per-record-gas", local.DefaultPerRecordGas, "gas used per vesting record")
	flags.Uint64Var(&blockMaxGas, "block-max-gas", local.DefaultBlockMaxGas, "block gas cap")
	flags.StringVar(&minGasPrice, "min-gas-price", local.DefaultMinGasPrice, "minimum accepted gas price")
	flags.BoolVar(&indexingDisabled, "indexing-disabled", false, "report every accepted transaction as not indexed")

	return cmd
}
