package consistency

import (
	"context"
	"errors"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

type Action string

const (
	ActionNone         Action = ""
	ActionReservePiece Action = "reserve_piece"
	ActionReleasePiece Action = "release_piece"
	ActionCheckSales   Action = "check_sales"
	ActionReviewSales  Action = "review_sales"
)

// AutoFixable reports whether the fixer may apply the action without a human.
func (a Action) AutoFixable() bool {
	return a == ActionReservePiece || a == ActionReleasePiece
}

type Report struct {
	PieceID        string                 `json:"piece_id" yaml:"piece_id"`
	Status         repository.PieceStatus `json:"status,omitempty" yaml:"status,omitempty"`
	NotFound       bool                   `json:"not_found,omitempty" yaml:"not_found,omitempty"`
	Consistent     bool                   `json:"consistent" yaml:"consistent"`
	PendingSales   []string               `json:"pending_sales,omitempty" yaml:"pending_sales,omitempty"`
	CompletedSales []string               `json:"completed_sales,omitempty" yaml:"completed_sales,omitempty"`
	Issues         []string               `json:"issues,omitempty" yaml:"issues,omitempty"`
	Warnings       []string               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Action         Action                 `json:"recommended_action,omitempty" yaml:"recommended_action,omitempty"`
}

type Checker struct {
	store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check compares the stored piece status with its sales. It never writes.
// A missing piece yields a NotFound report, not an error.
func (c *Checker) Check(ctx context.Context, pieceID string) (Report, error) {
	report := Report{PieceID: pieceID}

	piece, err := c.store.GetPiece(ctx, pieceID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			metrics.ConsistencyChecksTotal.WithLabelValues("not_found").Inc()
			report.NotFound = true
			report.Issues = []string{fmt.Sprintf("piece %s not found", pieceID)}
			return report, nil
		}
		metrics.OperationErrorsTotal.WithLabelValues("check").Inc()
		return Report{}, fmt.Errorf("check piece %s: %w", pieceID, err)
	}
	report.Status = piece.Status

	sales, err := c.store.ListSalesByPiece(ctx, pieceID)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("check").Inc()
		return Report{}, fmt.Errorf("check piece %s sales: %w", pieceID, err)
	}

	evaluate(&report, sales)

	outcome := "consistent"
	if !report.Consistent {
		outcome = "inconsistent"
	}
	metrics.ConsistencyChecksTotal.WithLabelValues(outcome).Inc()
	return report, nil
}

// evaluate fills the verdict. Manual-review findings take precedence over
// auto-fixable ones so an ambiguous piece is never mutated.
func evaluate(report *Report, sales []*repository.Sale) {
	for _, s := range sales {
		switch s.Status {
		case repository.SalePending:
			report.PendingSales = append(report.PendingSales, s.ID)
		case repository.SaleCompleted:
			report.CompletedSales = append(report.CompletedSales, s.ID)
		}
	}
	pending, completed := len(report.PendingSales), len(report.CompletedSales)

	var actions []Action
	if completed > 1 {
		report.Issues = append(report.Issues, fmt.Sprintf("piece has %d completed sales", completed))
		actions = append(actions, ActionReviewSales)
	}
	if report.Status == repository.PieceSold && completed == 0 {
		report.Issues = append(report.Issues, "piece is Sold but has no completed sale")
		actions = append(actions, ActionCheckSales)
	}
	if report.Status == repository.PieceReserved && pending == 0 {
		report.Issues = append(report.Issues, "piece is Reserved but has no pending sale")
		actions = append(actions, ActionReleasePiece)
	}
	if report.Status == repository.PieceAvailable && pending > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("piece is Available but has %d pending sale(s)", pending))
		actions = append(actions, ActionReservePiece)
	}
	if pending > 1 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("piece has %d pending sales, expected at most one", pending))
	}

	report.Consistent = len(actions) == 0
	if len(actions) > 0 {
		report.Action = actions[0]
	}
}
