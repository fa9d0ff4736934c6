package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Service exposes a Run method that blocks until the service ends or the context is canceled.
type Service interface {
	// Run starts the service and blocks until it is shut down via context cancellation,
	// an error occurs, or all work is done.
	Run(ctx context.Context) error
}

// Group runs background services next to a vesting run.
type Group struct {
	logger zerolog.Logger
	wg     sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewGroup creates an empty Group.
func NewGroup(logger zerolog.Logger) *Group {
	return &Group{logger: logger.With().Str("component", "services").Logger()}
}

// Go runs s in its own goroutine until ctx is canceled.
func (g *Group) Go(ctx context.Context, name string, s Service) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.logger.Info().Str("service", name).Msg("service start")

		err := s.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error().Err(err).Str("service", name).Msg("service failed")
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
			return
		}
		g.logger.Info().Str("service", name).Msg("service stop")
	}()
}

// Wait blocks until every service returned and reports their failures.
// Cancellation is not a failure.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
