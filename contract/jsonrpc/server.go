package jsonrpc

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/rs/zerolog"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// Server is a jsonrpc service that can serve the vesting contract interface
type Server struct {
	logger   zerolog.Logger
	srv      *http.Server
	rpc      *jsonrpc.RPCServer
	listener net.Listener

	started atomic.Bool
}

// serverInternalAPI provides the actual RPC methods.
type serverInternalAPI struct {
	logger   zerolog.Logger
	contract string
	impl     vesting.Contract
}

// BatchVesting implements the RPC method.
func (s *serverInternalAPI) BatchVesting(ctx context.Context, contract string, msg vesting.BatchVestingMsg, fee vesting.Fee, memo string, funds sdk.Coins) (*vesting.ExecuteResult, error) {
	s.logger.Debug().Str("contract", contract).Int("num_records", len(msg.Records)).Uint64("gas", fee.Gas).Str("memo", memo).
		Msg("RPC server: BatchVesting called")
	if s.contract != "" && contract != s.contract {
		return nil, fmt.Errorf("unknown contract %s", contract)
	}
	res, err := s.impl.BatchVesting(ctx, msg, fee, memo, funds)
	if err != nil {
		return nil, codedError(err)
	}
	return res, nil
}

// NewServer accepts the host address port and the contract implementation to serve as a jsonrpc service.
// An empty contract address accepts calls for any contract. A non-empty token requires bearer authentication.
func NewServer(logger zerolog.Logger, address, port, contract, token string, impl vesting.Contract) *Server {
	rpc := jsonrpc.NewServer(jsonrpc.WithServerErrors(getKnownErrorsMapping()))
	srv := &Server{
		rpc:    rpc,
		logger: logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(address, port),
			ReadHeaderTimeout: 2 * time.Second,
		},
	}
	srv.srv.Handler = requireToken(token, rpc)

	apiHandler := &serverInternalAPI{
		logger:   logger,
		contract: contract,
		impl:     impl,
	}

	srv.rpc.Register(namespace, apiHandler)
	return srv
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	expected := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), expected) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Start starts the RPC Server.
// This function can be called multiple times concurrently
// Once started, subsequent calls are a no-op
func (s *Server) Start(context.Context) error {
	couldStart := s.started.CompareAndSwap(false, true)

	if !couldStart {
		s.logger.Warn().Msg("cannot start server: already started")
		return nil
	}
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.listener = listener
	s.logger.Info().Str("listening_on", listener.Addr().String()).Msg("server started")
	//nolint:errcheck
	go s.srv.Serve(listener)
	return nil
}

// Stop stops the RPC Server.
// This function can be called multiple times concurrently
// Once stopped, subsequent calls are a no-op
func (s *Server) Stop(ctx context.Context) error {
	couldStop := s.started.CompareAndSwap(true, false)
	if !couldStop {
		s.logger.Warn().Msg("cannot stop server: already stopped")
		return nil
	}
	err := s.srv.Shutdown(ctx)
	if err != nil {
		return err
	}
	s.listener = nil
	s.logger.Info().Msg("server stopped")
	return nil
}
