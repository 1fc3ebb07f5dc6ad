package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/retry"
)

type ClaimResult struct {
	PieceID           string                 `json:"piece_id" yaml:"piece_id"`
	Success           bool                   `json:"success" yaml:"success"`
	Status            repository.PieceStatus `json:"status,omitempty" yaml:"status,omitempty"`
	ConflictingSaleID string                 `json:"conflicting_sale_id,omitempty" yaml:"conflicting_sale_id,omitempty"`
	Reason            string                 `json:"reason,omitempty" yaml:"reason,omitempty"`
	Reaped            *ReapResult            `json:"reaped,omitempty" yaml:"reaped,omitempty"`
	Fixed             *FixResult             `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

type claimOptions struct {
	cancelStale bool
	maxStaleAge time.Duration
}

type ClaimOption func(*claimOptions)

// WithoutStaleCancel skips the stale sale cleanup step.
func WithoutStaleCancel() ClaimOption {
	return func(o *claimOptions) {
		o.cancelStale = false
	}
}

func WithMaxStaleAge(d time.Duration) ClaimOption {
	return func(o *claimOptions) {
		o.maxStaleAge = d
	}
}

// Orchestrator prepares a piece for a new sale: it clears stale pending sales,
// repairs the piece status and then reports whether the piece can be taken.
type Orchestrator struct {
	store   Store
	reaper  *Reaper
	fixer   *Fixer
	locks   Locks
	events  *notify.Broadcaster
	logger  *zap.Logger
	retries retry.Config
}

func NewOrchestrator(store Store, reaper *Reaper, fixer *Fixer, locks Locks, events *notify.Broadcaster, logger *zap.Logger, retries retry.Config) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:   store,
		reaper:  reaper,
		fixer:   fixer,
		locks:   locks,
		events:  events,
		logger:  logger,
		retries: retries,
	}
}

// Claim runs cleanup, repair and a final read. Each step is safe to repeat, so
// transient store failures are retried step by step.
func (o *Orchestrator) Claim(ctx context.Context, pieceID string, opts ...ClaimOption) (ClaimResult, error) {
	options := claimOptions{cancelStale: true}
	for _, opt := range opts {
		opt(&options)
	}

	l := o.logger.With(zap.String("piece_id", pieceID))
	result := ClaimResult{PieceID: pieceID}

	if o.locks != nil && o.locks.IsLocked(pieceID) {
		return o.reject(l, result, "piece is locked by another operation"), nil
	}

	if options.cancelStale {
		reaped, err := retry.Value(ctx, o.retries, func(ctx context.Context) (ReapResult, error) {
			return o.reaper.ReapPiece(ctx, pieceID, options.maxStaleAge)
		})
		if err != nil {
			return o.fail(l, result, fmt.Errorf("cancel stale sales: %w", err))
		}
		result.Reaped = &reaped
	}

	fixed, err := retry.Value(ctx, o.retries, func(ctx context.Context) (FixResult, error) {
		return o.fixer.Fix(ctx, pieceID)
	})
	if err != nil {
		return o.fail(l, result, fmt.Errorf("fix piece: %w", err))
	}
	result.Fixed = &fixed

	var (
		piece   *repository.Piece
		pending *repository.Sale
	)
	err = retry.Do(ctx, o.retries, func(ctx context.Context) error {
		p, err := o.store.GetPiece(ctx, pieceID)
		if err != nil {
			return err
		}
		sales, err := o.store.ListSalesByPiece(ctx, pieceID)
		if err != nil {
			return err
		}
		piece, pending = p, firstPending(sales)
		return nil
	})
	if err != nil {
		return o.fail(l, result, fmt.Errorf("re-read piece: %w", err))
	}
	result.Status = piece.Status

	if pending != nil {
		result.ConflictingSaleID = pending.ID
		return o.reject(l, result, fmt.Sprintf("piece is %s with pending sale %s", piece.Status, pending.ID)), nil
	}
	if piece.Status != repository.PieceAvailable {
		return o.reject(l, result, fmt.Sprintf("piece is %s", piece.Status)), nil
	}

	l.Info("piece ready for a new sale")
	metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
	result.Success = true
	return result, nil
}

// ClaimAndLock claims the piece and, on success, locks it for the caller. The
// returned release func is never nil and must be called once the caller's own
// writes are done.
func (o *Orchestrator) ClaimAndLock(ctx context.Context, pieceID string, opts ...ClaimOption) (ClaimResult, func(), error) {
	noop := func() {}

	result, err := o.Claim(ctx, pieceID, opts...)
	if err != nil || !result.Success {
		return result, noop, err
	}
	if o.locks == nil {
		return result, noop, nil
	}
	if !o.locks.Lock(pieceID) {
		result.Success = false
		return o.reject(o.logger.With(zap.String("piece_id", pieceID)), result, "piece was locked by a concurrent claim"), noop, nil
	}
	return result, func() { o.locks.Unlock(pieceID) }, nil
}

func (o *Orchestrator) reject(l *zap.Logger, result ClaimResult, reason string) ClaimResult {
	l.Info("claim rejected", zap.String("reason", reason), zap.String("conflicting_sale_id", result.ConflictingSaleID))
	metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
	o.events.Publish(notify.Event{
		Type:    notify.ClaimRejected,
		PieceID: result.PieceID,
		SaleID:  result.ConflictingSaleID,
		Message: reason,
	})
	result.Reason = reason
	return result
}

// fail turns a missing piece into a rejected claim and passes other errors on.
func (o *Orchestrator) fail(l *zap.Logger, result ClaimResult, err error) (ClaimResult, error) {
	if errors.Is(err, repository.ErrObjectNotFound) {
		return o.reject(l, result, "piece not found"), nil
	}
	l.Error("claim failed", zap.Error(err))
	metrics.ClaimsTotal.WithLabelValues("error").Inc()
	return ClaimResult{}, err
}

func firstPending(sales []*repository.Sale) *repository.Sale {
	var first *repository.Sale
	for _, s := range sales {
		if s.Status != repository.SalePending {
			continue
		}
		if first == nil || s.CreatedAt.Before(first.CreatedAt) {
			first = s
		}
	}
	return first
}
