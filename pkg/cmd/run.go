package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/pkg/config"
)

// ParseConfig is a helper that loads the configuration and validates it.
func ParseConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}

// SetupLogger configures and returns a logger based on the provided configuration.
// It applies the following settings from the config:
//   - Log format (text or JSON)
//   - Log level (debug, info, warn, error)
//
// The returned logger is already configured with the "component" field set to "main".
func SetupLogger(cfg config.LogConfig) zerolog.Logger {
	var output = os.Stderr

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: output})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		// Default to info if parsing fails
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return logger.With().Timestamp().Str("component", "main").Logger()
}

// RunFunc performs one vesting submission run.
type RunFunc func(ctx context.Context) ([]vesting.BatchResult, error)

// RunSubmission runs fn until it returns. An interrupt cancels the run; fn is then given
// shutdownTimeout to finish the batch in flight before RunSubmission gives up waiting.
func RunSubmission(
	logger zerolog.Logger,
	cmd *cobra.Command,
	shutdownTimeout time.Duration,
	fn RunFunc,
) ([]vesting.BatchResult, error) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	type outcome struct {
		results []vesting.BatchResult
		err     error
	}
	doneCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("Recovered from panic in vesting run")
				doneCh <- outcome{err: fmt.Errorf("vesting run panicked: %v", r)}
			}
		}()

		results, err := fn(ctx)
		doneCh <- outcome{results: results, err: err}
	}()

	// Wait for interrupt signal to gracefully stop the run
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case out := <-doneCh:
		return out.results, out.err
	case <-quit:
		logger.Info().Msg("stopping vesting run after the batch in flight...")
	case <-ctx.Done():
		logger.Info().Msg("vesting run canceled")
	}
	cancel()

	select {
	case <-time.After(shutdownTimeout):
		logger.Warn().Dur("timeout", shutdownTimeout).Msg("vesting run shutdown timed out")
		return nil, fmt.Errorf("vesting run did not stop within %s: %w", shutdownTimeout, context.Canceled)
	case out := <-doneCh:
		return out.results, out.err
	}
}
