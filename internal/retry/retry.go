// Package retry wraps transient store calls in capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Retryable reports whether err may succeed on a later attempt. Not-found
// results and context cancellation are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repository.ErrObjectNotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or MaxAttempts
// calls have been made. The last error is returned.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	if cfg.BaseDelay > 0 {
		policy.InitialInterval = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxInterval = cfg.MaxDelay
	}
	policy.MaxElapsedTime = 0
	policy.Reset()

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if !Retryable(err) || attempt >= cfg.MaxAttempts {
			return err
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
