package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

type AuditRepo struct{}

func NewAuditRepo() storage.AuditRepository {
	return &AuditRepo{}
}

func (r *AuditRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.SaleAuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal sale snapshot: %w", err)
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO sale_audit_log (
            id, action, reason, sale_id, piece_id, snapshot, recorded_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, entry.ID, entry.Action, entry.Reason, entry.SaleID, entry.PieceID, snapshot, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert sale audit entry: %w", err)
	}
	return nil
}
