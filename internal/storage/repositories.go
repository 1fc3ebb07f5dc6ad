package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

type PieceRepository interface {
	GetByID(ctx context.Context, id string) (*repository.Piece, error)
	ListReservedUpdatedBefore(ctx context.Context, before time.Time) ([]*repository.Piece, error)
	UpdateStatusIfTx(ctx context.Context, tx db.Tx, id string, expected, next repository.PieceStatus, now time.Time) (bool, error)
}

type SaleRepository interface {
	ListByPiece(ctx context.Context, pieceID string) ([]*repository.Sale, error)
	ListPendingCreatedBefore(ctx context.Context, pieceID string, cutoff time.Time) ([]*repository.Sale, error)
	UpdateStatusIf(ctx context.Context, id string, expected, next repository.SaleStatus, now time.Time) (bool, error)
}

type HistoryRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.PieceHistoryEntry) error
}

type AuditRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.SaleAuditEntry) error
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit int) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, db db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
}

type OperatorRepository interface {
	Create(ctx context.Context, username, password string) error
	Exists(ctx context.Context, username string) (bool, error)
	Validate(ctx context.Context, username, password string) (bool, error)
}
