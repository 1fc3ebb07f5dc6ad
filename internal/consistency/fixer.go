package consistency

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

// ErrFixWrite marks a failed status write, as opposed to a failed read.
var ErrFixWrite = errors.New("piece status write failed")

type FixResult struct {
	PieceID      string                 `json:"piece_id" yaml:"piece_id"`
	Action       Action                 `json:"action,omitempty" yaml:"action,omitempty"`
	Success      bool                   `json:"success" yaml:"success"`
	Applied      bool                   `json:"applied" yaml:"applied"`
	Skipped      bool                   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	ManualReview bool                   `json:"manual_review,omitempty" yaml:"manual_review,omitempty"`
	From         repository.PieceStatus `json:"from,omitempty" yaml:"from,omitempty"`
	To           repository.PieceStatus `json:"to,omitempty" yaml:"to,omitempty"`
	Message      string                 `json:"message" yaml:"message"`
	Report       Report                 `json:"report" yaml:"report"`
}

type Fixer struct {
	store   Store
	checker *Checker
	locks   Locks
	events  *notify.Broadcaster
	logger  *zap.Logger
}

func NewFixer(store Store, checker *Checker, locks Locks, events *notify.Broadcaster, logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{
		store:   store,
		checker: checker,
		locks:   locks,
		events:  events,
		logger:  logger,
	}
}

// Fix applies the checker's recommendation with a compare-and-swap on the piece
// status. Losing the swap to another writer is a no-op result, not an error.
// Locked pieces and ambiguous states are left untouched.
func (f *Fixer) Fix(ctx context.Context, pieceID string) (FixResult, error) {
	l := f.logger.With(zap.String("piece_id", pieceID))
	result := FixResult{PieceID: pieceID}

	if f.locks != nil && f.locks.IsLocked(pieceID) {
		l.Debug("piece locked by in-flight operation, fix skipped")
		metrics.PieceFixesTotal.WithLabelValues("", "skipped_locked").Inc()
		result.Skipped = true
		result.Message = "piece is locked by an in-flight operation"
		return result, nil
	}

	report, err := f.checker.Check(ctx, pieceID)
	if err != nil {
		return FixResult{}, err
	}
	result.Report = report
	result.Action = report.Action

	if report.NotFound {
		return FixResult{}, fmt.Errorf("fix piece %s: %w", pieceID, repository.ErrObjectNotFound)
	}
	if report.Consistent {
		result.Success = true
		result.Message = "no action needed"
		return result, nil
	}

	switch report.Action {
	case ActionReleasePiece:
		return f.swap(ctx, l, result, repository.PieceReserved, repository.PieceAvailable)
	case ActionReservePiece:
		return f.swap(ctx, l, result, repository.PieceAvailable, repository.PieceReserved)
	default:
		l.Warn("inconsistent piece needs manual review",
			zap.String("action", string(report.Action)),
			zap.Strings("issues", report.Issues))
		metrics.PieceFixesTotal.WithLabelValues(string(report.Action), "manual_review").Inc()
		f.events.Publish(notify.Event{
			Type:    notify.ManualReviewRequired,
			PieceID: pieceID,
			Message: fmt.Sprintf("%s: %v", report.Action, report.Issues),
		})
		result.ManualReview = true
		result.Message = "manual review required"
		return result, nil
	}
}

func (f *Fixer) swap(ctx context.Context, l *zap.Logger, result FixResult, from, to repository.PieceStatus) (FixResult, error) {
	result.From, result.To = from, to

	applied, err := f.store.UpdatePieceStatusIf(ctx, result.PieceID, from, to)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("fix").Inc()
		return FixResult{}, fmt.Errorf("fix piece %s (%s -> %s): %w: %w", result.PieceID, from, to, ErrFixWrite, err)
	}

	result.Success = true
	if !applied {
		l.Info("piece status changed concurrently, fix skipped",
			zap.String("expected", string(from)))
		metrics.PieceFixesTotal.WithLabelValues(string(result.Action), "precondition_failed").Inc()
		result.Message = "status already changed by another writer"
		return result, nil
	}

	l.Info("piece status fixed", zap.String("from", string(from)), zap.String("to", string(to)))
	metrics.PieceFixesTotal.WithLabelValues(string(result.Action), "applied").Inc()
	f.events.Publish(notify.Event{
		Type:    notify.PieceFixed,
		PieceID: result.PieceID,
		Message: fmt.Sprintf("%s -> %s", from, to),
	})
	result.Applied = true
	result.Message = fmt.Sprintf("status changed from %s to %s", from, to)
	return result, nil
}
