// Package maintenance runs the periodic stale-sale sweep.
package maintenance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/retry"
)

const DefaultInterval = 30 * time.Second

type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (consistency.ReapResult, error)
}

// StatusFunc is told whether the last sweep succeeded.
type StatusFunc func(healthy bool)

type Config struct {
	Interval    time.Duration
	MaxStaleAge time.Duration
	Retry       retry.Config
}

type Runner struct {
	sweeper  Sweeper
	config   Config
	logger   *zap.Logger
	onStatus StatusFunc

	mu   sync.Mutex
	last Status
}

type Status struct {
	LastRun    time.Time               `json:"last_run"`
	LastResult *consistency.ReapResult `json:"last_result,omitempty"`
	LastError  string                  `json:"last_error,omitempty"`
	Runs       int                     `json:"runs"`
}

func NewRunner(sweeper Sweeper, config Config, logger *zap.Logger, onStatus StatusFunc) *Runner {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if onStatus == nil {
		onStatus = func(bool) {}
	}
	return &Runner{
		sweeper:  sweeper,
		config:   config,
		logger:   logger,
		onStatus: onStatus,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting maintenance runner", zap.Duration("interval", r.config.Interval))

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		r.RunOnce(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info("maintenance runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one sweep, retrying transient failures.
func (r *Runner) RunOnce(ctx context.Context) (consistency.ReapResult, error) {
	started := time.Now()
	result, err := retry.Value(ctx, r.config.Retry, func(ctx context.Context) (consistency.ReapResult, error) {
		return r.sweeper.Sweep(ctx, r.config.MaxStaleAge)
	})

	r.mu.Lock()
	r.last.Runs++
	r.last.LastRun = started.UTC()
	if err != nil {
		r.last.LastError = err.Error()
		r.last.LastResult = nil
	} else {
		r.last.LastError = ""
		r.last.LastResult = &result
	}
	r.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("sweep failed", zap.Error(err))
		}
		r.onStatus(false)
		return result, err
	}

	r.onStatus(true)
	if result.Cancelled > 0 || result.OrphansReleased > 0 || result.Failed > 0 {
		r.logger.Info("sweep finished",
			zap.Int("stale_found", result.StaleFound),
			zap.Int("cancelled", result.Cancelled),
			zap.Int("pieces_fixed", result.PiecesFixed),
			zap.Int("orphans_released", result.OrphansReleased),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Duration("took", time.Since(started)))
	} else {
		r.logger.Debug("sweep finished, nothing to do", zap.Duration("took", time.Since(started)))
	}
	return result, nil
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
