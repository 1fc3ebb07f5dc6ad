package postgresql

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

type HistoryRepo struct{}

func NewHistoryRepo() storage.HistoryRepository {
	return &HistoryRepo{}
}

func (r *HistoryRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.PieceHistoryEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO piece_status_history (
            piece_id, old_status, new_status, source, changed_at
        ) VALUES ($1, $2, $3, $4, $5)
    `, entry.PieceID, entry.OldStatus, entry.NewStatus, entry.Source, entry.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert piece history: %w", err)
	}
	return nil
}
