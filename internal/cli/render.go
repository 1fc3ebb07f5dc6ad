package cli

import (
	"fmt"
	"io"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
)

func writeList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func writeReport(w io.Writer, r consistency.Report) {
	if r.NotFound {
		fmt.Fprintf(w, "piece %s: not found\n", r.PieceID)
		return
	}

	verdict := "consistent"
	if !r.Consistent {
		verdict = "INCONSISTENT"
	}
	fmt.Fprintf(w, "piece %s: %s (%s)\n", r.PieceID, r.Status, verdict)
	writeList(w, "pending sales", r.PendingSales)
	writeList(w, "completed sales", r.CompletedSales)
	writeList(w, "issues", r.Issues)
	writeList(w, "warnings", r.Warnings)
	if r.Action != consistency.ActionNone {
		fmt.Fprintf(w, "recommended action: %s\n", r.Action)
	}
}

func writeFix(w io.Writer, r consistency.FixResult) {
	fmt.Fprintf(w, "piece %s: %s\n", r.PieceID, r.Message)
	if r.Action != consistency.ActionNone {
		fmt.Fprintf(w, "action: %s\n", r.Action)
	}
	if r.ManualReview {
		writeList(w, "issues", r.Report.Issues)
	}
}

func writeReap(w io.Writer, r consistency.ReapResult) {
	if r.PieceID == "" {
		fmt.Fprintf(w, "sweep (max age %s)\n", r.MaxAge)
	} else {
		fmt.Fprintf(w, "piece %s (max age %s)\n", r.PieceID, r.MaxAge)
	}
	fmt.Fprintf(w, "stale sales found: %d\n", r.StaleFound)
	fmt.Fprintf(w, "cancelled: %d\n", r.Cancelled)
	for _, id := range r.CancelledSales {
		fmt.Fprintf(w, "  - %s\n", id)
	}
	fmt.Fprintf(w, "already changed: %d\n", r.AlreadyChanged)
	fmt.Fprintf(w, "skipped: %d\n", r.Skipped)
	fmt.Fprintf(w, "failed: %d\n", r.Failed)
	fmt.Fprintf(w, "pieces fixed: %d\n", r.PiecesFixed)
	if r.PieceID == "" {
		fmt.Fprintf(w, "orphans released: %d\n", r.OrphansReleased)
	}
	writeList(w, "failures", r.Failures)
}

func writeClaim(w io.Writer, r consistency.ClaimResult) {
	if r.Success {
		fmt.Fprintf(w, "piece %s: claimed (%s)\n", r.PieceID, r.Status)
	} else {
		fmt.Fprintf(w, "piece %s: rejected: %s\n", r.PieceID, r.Reason)
	}
	if r.ConflictingSaleID != "" {
		fmt.Fprintf(w, "conflicting sale: %s\n", r.ConflictingSaleID)
	}
	if r.Reaped != nil && r.Reaped.Cancelled > 0 {
		fmt.Fprintf(w, "stale sales cancelled: %d\n", r.Reaped.Cancelled)
	}
	if r.Fixed != nil && r.Fixed.Applied {
		fmt.Fprintf(w, "fixed: %s -> %s\n", r.Fixed.From, r.Fixed.To)
	}
}
