package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RegisterCustomHTTPEndpoints is the designated place to add plain HTTP handlers.
func RegisterCustomHTTPEndpoints(mux *http.ServeMux, history *SubmissionHistory) {
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	mux.HandleFunc("/submissions", func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			http.Error(w, "submission history not available", http.StatusServiceUnavailable)
			return
		}
		history.handleSubmissions(w, r)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			http.Error(w, "submission history not available", http.StatusServiceUnavailable)
			return
		}
		history.handleStats(w, r)
	})
}

// HistoryServer serves the submission history until its context is canceled.
type HistoryServer struct {
	srv      *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewHistoryServer listens on addr and prepares the history endpoints.
func NewHistoryServer(addr string, history *SubmissionHistory, logger zerolog.Logger) (*HistoryServer, error) {
	mux := http.NewServeMux()
	RegisterCustomHTTPEndpoints(mux, history)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &HistoryServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 2 * time.Second,
		},
		listener: listener,
		logger:   logger.With().Str("component", "history_server").Logger(),
	}, nil
}

// Addr returns the address the server listens on.
func (s *HistoryServer) Addr() string {
	return s.listener.Addr().String()
}

// Run serves requests until ctx is done, then shuts the server down.
func (s *HistoryServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("serving submission history")
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("history server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down history server: %w", err)
	}
	return nil
}
