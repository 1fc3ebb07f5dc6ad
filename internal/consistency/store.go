// Package consistency keeps a piece's status in line with its sales using
// single-row conditional writes that are safe to repeat from any number of
// concurrent clients.
package consistency

import (
	"context"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

// Store is the table of record for pieces and sales. Implementations return
// errors wrapping repository.ErrObjectNotFound for missing rows; the *If
// methods report false, not an error, when the expected value no longer holds.
type Store interface {
	GetPiece(ctx context.Context, id string) (*repository.Piece, error)
	ListSalesByPiece(ctx context.Context, pieceID string) ([]*repository.Sale, error)
	// ListPendingSalesCreatedBefore lists pending sales with created_at < cutoff;
	// an empty pieceID lists them across every piece.
	ListPendingSalesCreatedBefore(ctx context.Context, pieceID string, cutoff time.Time) ([]*repository.Sale, error)
	ListReservedPieces(ctx context.Context, updatedBefore time.Time) ([]*repository.Piece, error)
	UpdatePieceStatusIf(ctx context.Context, id string, expected, next repository.PieceStatus) (bool, error)
	UpdateSaleStatusIf(ctx context.Context, id string, expected, next repository.SaleStatus) (bool, error)
	AppendSaleAudit(ctx context.Context, entry repository.SaleAuditEntry) error
}

// Locks is the advisory registry of pieces owned by in-flight operations.
type Locks interface {
	IsLocked(pieceID string) bool
	Lock(pieceID string) bool
	Unlock(pieceID string)
}
