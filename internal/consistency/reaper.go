package consistency

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

const (
	DefaultMaxStaleAge = time.Hour
	DefaultGracePeriod = 5 * time.Minute
)

type ReaperConfig struct {
	MaxStaleAge time.Duration
	GracePeriod time.Duration
}

type ReapResult struct {
	PieceID         string        `json:"piece_id,omitempty" yaml:"piece_id,omitempty"`
	MaxAge          time.Duration `json:"max_age" yaml:"max_age"`
	Cutoff          time.Time     `json:"cutoff" yaml:"cutoff"`
	StaleFound      int           `json:"stale_found" yaml:"stale_found"`
	Cancelled       int           `json:"cancelled" yaml:"cancelled"`
	AlreadyChanged  int           `json:"already_changed" yaml:"already_changed"`
	Skipped         int           `json:"skipped" yaml:"skipped"`
	Failed          int           `json:"failed" yaml:"failed"`
	PiecesFixed     int           `json:"pieces_fixed" yaml:"pieces_fixed"`
	OrphansReleased int           `json:"orphans_released" yaml:"orphans_released"`
	CancelledSales  []string      `json:"cancelled_sales,omitempty" yaml:"cancelled_sales,omitempty"`
	Failures        []string      `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type Reaper struct {
	store   Store
	fixer   *Fixer
	locks   Locks
	events  *notify.Broadcaster
	logger  *zap.Logger
	config  ReaperConfig
	timeNow func() time.Time
}

func NewReaper(store Store, fixer *Fixer, locks Locks, events *notify.Broadcaster, logger *zap.Logger, config ReaperConfig) *Reaper {
	if config.MaxStaleAge <= 0 {
		config.MaxStaleAge = DefaultMaxStaleAge
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		store:   store,
		fixer:   fixer,
		locks:   locks,
		events:  events,
		logger:  logger,
		config:  config,
		timeNow: time.Now,
	}
}

// ReapPiece cancels the piece's pending sales older than maxAge and then repairs
// the piece. No grace period applies. A zero maxAge uses the configured default.
func (r *Reaper) ReapPiece(ctx context.Context, pieceID string, maxAge time.Duration) (ReapResult, error) {
	if pieceID == "" {
		return ReapResult{}, errors.New("reap: piece id is required")
	}
	return r.reap(ctx, pieceID, maxAge, false)
}

// Sweep reaps stale sales across all pieces, skipping pieces touched within the
// grace period, and then releases orphaned reservations. On a read failure the
// partial result is returned together with the error.
func (r *Reaper) Sweep(ctx context.Context, maxAge time.Duration) (ReapResult, error) {
	started := time.Now()
	defer func() {
		metrics.SweepDurationSeconds.Observe(time.Since(started).Seconds())
	}()

	result, err := r.reap(ctx, "", maxAge, true)
	if err != nil {
		return result, err
	}

	r.events.Publish(notify.Event{
		Type: notify.SweepCompleted,
		Message: fmt.Sprintf("stale=%d cancelled=%d fixed=%d orphans=%d failed=%d",
			result.StaleFound, result.Cancelled, result.PiecesFixed, result.OrphansReleased, result.Failed),
	})
	return result, nil
}

func (r *Reaper) reap(ctx context.Context, pieceID string, maxAge time.Duration, background bool) (ReapResult, error) {
	if maxAge <= 0 {
		maxAge = r.config.MaxStaleAge
	}
	now := r.timeNow().UTC()
	result := ReapResult{
		PieceID: pieceID,
		MaxAge:  maxAge,
		Cutoff:  now.Add(-maxAge),
	}
	l := r.logger.With(zap.String("piece_id", pieceID), zap.Bool("sweep", background))

	stale, err := r.store.ListPendingSalesCreatedBefore(ctx, pieceID, result.Cutoff)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("reap").Inc()
		return result, fmt.Errorf("list stale sales: %w", err)
	}
	result.StaleFound = len(stale)

	graceCutoff := now.Add(-r.config.GracePeriod)
	inGrace := make(map[string]bool)
	affected := make(map[string]struct{})

	for _, sale := range stale {
		sl := l.With(zap.String("sale_id", sale.ID), zap.String("sale_piece_id", sale.PieceID))

		if r.locks != nil && r.locks.IsLocked(sale.PieceID) {
			sl.Debug("piece locked by in-flight operation, stale sale left alone")
			result.Skipped++
			continue
		}

		if background {
			skip, known := inGrace[sale.PieceID]
			if !known {
				piece, err := r.store.GetPiece(ctx, sale.PieceID)
				switch {
				case errors.Is(err, repository.ErrObjectNotFound):
					sl.Warn("stale sale references a missing piece")
					skip = true
				case err != nil:
					metrics.OperationErrorsTotal.WithLabelValues("reap").Inc()
					return result, fmt.Errorf("read piece %s: %w", sale.PieceID, err)
				default:
					skip = piece.UpdatedAt.After(graceCutoff)
				}
				inGrace[sale.PieceID] = skip
			}
			if skip {
				sl.Debug("piece inside grace period, stale sale left alone")
				result.Skipped++
				continue
			}
		}

		applied, err := r.store.UpdateSaleStatusIf(ctx, sale.ID, repository.SalePending, repository.SaleCancelled)
		if err != nil {
			sl.Error("failed to cancel stale sale", zap.Error(err))
			metrics.OperationErrorsTotal.WithLabelValues("cancel_sale").Inc()
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("cancel sale %s: %v", sale.ID, err))
			continue
		}
		if !applied {
			sl.Info("sale left pending state concurrently, not cancelled")
			result.AlreadyChanged++
			continue
		}

		result.Cancelled++
		result.CancelledSales = append(result.CancelledSales, sale.ID)
		affected[sale.PieceID] = struct{}{}
		metrics.StaleSalesCancelledTotal.Inc()
		sl.Info("stale sale cancelled", zap.Time("created_at", sale.CreatedAt))

		entry := repository.SaleAuditEntry{
			Action:     repository.AuditActionStaleCancelled,
			Reason:     fmt.Sprintf("pending for longer than %s", maxAge),
			SaleID:     sale.ID,
			PieceID:    sale.PieceID,
			Snapshot:   repository.SnapshotOf(sale),
			RecordedAt: now,
		}
		if err := r.store.AppendSaleAudit(ctx, entry); err != nil {
			sl.Error("failed to append audit entry for cancelled sale", zap.Error(err))
			metrics.OperationErrorsTotal.WithLabelValues("audit").Inc()
			result.Failures = append(result.Failures, fmt.Sprintf("audit sale %s: %v", sale.ID, err))
		}

		r.events.Publish(notify.Event{
			Type:    notify.SaleCancelled,
			PieceID: sale.PieceID,
			SaleID:  sale.ID,
			Message: entry.Reason,
		})
	}

	for _, id := range sortedKeys(affected) {
		fix, err := r.fixer.Fix(ctx, id)
		if errors.Is(err, ErrFixWrite) {
			recordFixFailure(l, id, err, &result)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("fix piece %s after reaping: %w", id, err)
		}
		if fix.Applied {
			result.PiecesFixed++
		}
	}

	if background {
		if err := r.releaseOrphans(ctx, l, graceCutoff, affected, &result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// releaseOrphans repairs Reserved pieces that have no pending sale left, other
// than the ones the sweep has just handled.
func (r *Reaper) releaseOrphans(ctx context.Context, l *zap.Logger, graceCutoff time.Time, handled map[string]struct{}, result *ReapResult) error {
	reserved, err := r.store.ListReservedPieces(ctx, graceCutoff)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("reap").Inc()
		return fmt.Errorf("list reserved pieces: %w", err)
	}

	for _, piece := range reserved {
		if _, done := handled[piece.ID]; done {
			continue
		}
		fix, err := r.fixer.Fix(ctx, piece.ID)
		if errors.Is(err, ErrFixWrite) {
			recordFixFailure(l, piece.ID, err, result)
			continue
		}
		if err != nil {
			return fmt.Errorf("fix reserved piece %s: %w", piece.ID, err)
		}
		if fix.Applied && fix.Action == ActionReleasePiece {
			l.Info("orphaned reservation released", zap.String("orphan_piece_id", piece.ID))
			result.OrphansReleased++
		}
	}
	return nil
}

// recordFixFailure counts a failed piece write so the batch can go on with the
// remaining pieces. Read failures still abort the batch.
func recordFixFailure(l *zap.Logger, pieceID string, err error, result *ReapResult) {
	l.Error("failed to fix piece", zap.String("fix_piece_id", pieceID), zap.Error(err))
	result.Failed++
	result.Failures = append(result.Failures, err.Error())
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
