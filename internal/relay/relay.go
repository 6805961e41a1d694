// Package relay drives the outbox relay: it polls the sync queues and hands pending records to a broker.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/jnst/storefront-sync/internal/backoff"
	"github.com/jnst/storefront-sync/internal/service"
)

const (
	minRetryDelay   = time.Second
	maxRetryDelay   = time.Minute
	retryMultiplier = 2.0
)

// Runner repeats relay passes until its context is cancelled.
type Runner struct {
	outbox       service.OutboxService
	pollInterval time.Duration
	batchSize    int
	backoff      *backoff.Backoff
}

// NewRunner creates a Runner that processes up to batchSize records per queue every pollInterval.
func NewRunner(outbox service.OutboxService, pollInterval time.Duration, batchSize int) *Runner {
	return &Runner{
		outbox:       outbox,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		backoff:      backoff.New(minRetryDelay, maxRetryDelay, retryMultiplier),
	}
}

// Run processes a pass immediately and then once per poll interval.
// A failing pass is retried with exponential backoff instead of the poll interval.
// It returns once ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("relay started",
		slog.Duration("poll_interval", r.pollInterval),
		slog.Int("batch_size", r.batchSize),
	)

	for {
		wait := r.pollInterval

		if err := r.outbox.ProcessPending(ctx, r.batchSize); err != nil {
			if ctx.Err() != nil {
				break
			}

			wait = r.backoff.Next()
			slog.Error("relay pass failed",
				slog.Duration("retry_in", wait),
				slog.Int("attempt", r.backoff.Attempts()),
				slog.String("error", err.Error()),
			)
		} else {
			r.backoff.Reset()
		}

		if err := backoff.Sleep(ctx, wait); err != nil {
			break
		}
	}

	slog.Info("relay stopped")

	return nil
}
