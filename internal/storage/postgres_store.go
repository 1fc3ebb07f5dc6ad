package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

const historySource = "consistency"

// PostgresStore is the table of record for pieces and sales. Every mutation it
// offers is a single-row conditional update; history and audit rows ride in the
// same transaction as the write they describe.
type PostgresStore struct {
	db         db.DB
	pieces     PieceRepository
	sales      SaleRepository
	history    HistoryRepository
	audit      AuditRepository
	outbox     OutboxTaskRepository
	auditTopic string
	timeNow    func() time.Time
}

func NewPostgresStore(
	database db.DB,
	pieces PieceRepository,
	sales SaleRepository,
	history HistoryRepository,
	audit AuditRepository,
	outbox OutboxTaskRepository,
	auditTopic string,
) *PostgresStore {
	return &PostgresStore{
		db:         database,
		pieces:     pieces,
		sales:      sales,
		history:    history,
		audit:      audit,
		outbox:     outbox,
		auditTopic: auditTopic,
		timeNow:    time.Now,
	}
}

func (s *PostgresStore) GetPiece(ctx context.Context, id string) (*repository.Piece, error) {
	return s.pieces.GetByID(ctx, id)
}

func (s *PostgresStore) ListSalesByPiece(ctx context.Context, pieceID string) ([]*repository.Sale, error) {
	return s.sales.ListByPiece(ctx, pieceID)
}

func (s *PostgresStore) ListPendingSalesCreatedBefore(ctx context.Context, pieceID string, cutoff time.Time) ([]*repository.Sale, error) {
	return s.sales.ListPendingCreatedBefore(ctx, pieceID, cutoff)
}

func (s *PostgresStore) ListReservedPieces(ctx context.Context, updatedBefore time.Time) ([]*repository.Piece, error) {
	return s.pieces.ListReservedUpdatedBefore(ctx, updatedBefore)
}

func (s *PostgresStore) UpdatePieceStatusIf(ctx context.Context, id string, expected, next repository.PieceStatus) (bool, error) {
	now := s.timeNow().UTC()
	var applied bool
	err := db.InTx(ctx, s.db, func(tx db.Tx) error {
		ok, err := s.pieces.UpdateStatusIfTx(ctx, tx, id, expected, next, now)
		if err != nil || !ok {
			return err
		}
		applied = true
		return s.history.CreateTx(ctx, tx, &repository.PieceHistoryEntry{
			PieceID:   id,
			OldStatus: expected,
			NewStatus: next,
			Source:    historySource,
			ChangedAt: now,
		})
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *PostgresStore) UpdateSaleStatusIf(ctx context.Context, id string, expected, next repository.SaleStatus) (bool, error) {
	return s.sales.UpdateStatusIf(ctx, id, expected, next, s.timeNow().UTC())
}

func (s *PostgresStore) AppendSaleAudit(ctx context.Context, entry repository.SaleAuditEntry) error {
	return db.InTx(ctx, s.db, func(tx db.Tx) error {
		if err := s.audit.CreateTx(ctx, tx, &entry); err != nil {
			return err
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		return s.outbox.CreateTx(ctx, tx, &repository.OutboxTask{
			Payload: payload,
			Topic:   s.auditTopic,
		})
	})
}
