package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

type PieceRepo struct {
	db db.DB
}

func NewPieceRepo(db db.DB) storage.PieceRepository {
	return &PieceRepo{db: db}
}

func (r *PieceRepo) GetByID(ctx context.Context, id string) (*repository.Piece, error) {
	var piece repository.Piece
	err := r.db.Get(ctx, &piece, `
        SELECT id, number, land_name, status, updated_at
        FROM pieces
        WHERE id = $1
    `, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("get piece %s: %w", id, err)
	}
	return &piece, nil
}

func (r *PieceRepo) ListReservedUpdatedBefore(ctx context.Context, before time.Time) ([]*repository.Piece, error) {
	var pieces []*repository.Piece
	err := r.db.Select(ctx, &pieces, `
        SELECT id, number, land_name, status, updated_at
        FROM pieces
        WHERE status = $1 AND updated_at < $2
        ORDER BY updated_at ASC
    `, repository.PieceReserved, before)
	if err != nil {
		return nil, fmt.Errorf("list reserved pieces: %w", err)
	}
	return pieces, nil
}

// UpdateStatusIfTx flips the status only while the stored value still equals expected.
// The boolean reports whether a row was changed.
func (r *PieceRepo) UpdateStatusIfTx(ctx context.Context, tx db.Tx, id string, expected, next repository.PieceStatus, now time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
        UPDATE pieces
        SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `, id, expected, next, now)
	if err != nil {
		return false, fmt.Errorf("update piece %s status: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
