package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDone       TaskStatus = "DONE"
)

type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      TaskStatus      `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

const AuditActionStaleCancelled = "sale_cancelled_stale"

// SaleSnapshot is the state of a sale captured right before it was cancelled.
type SaleSnapshot struct {
	SaleID    string          `json:"sale_id"`
	PieceID   string          `json:"piece_id"`
	ClientID  string          `json:"client_id"`
	Status    SaleStatus      `json:"status"`
	Price     decimal.Decimal `json:"price"`
	Deposit   decimal.Decimal `json:"deposit"`
	Fee       decimal.Decimal `json:"fee"`
	CreatedAt time.Time       `json:"created_at"`
}

func SnapshotOf(s *Sale) SaleSnapshot {
	return SaleSnapshot{
		SaleID:    s.ID,
		PieceID:   s.PieceID,
		ClientID:  s.ClientID,
		Status:    s.Status,
		Price:     s.Price,
		Deposit:   s.Deposit,
		Fee:       s.Fee,
		CreatedAt: s.CreatedAt,
	}
}

type SaleAuditEntry struct {
	ID         uuid.UUID    `json:"id"`
	Action     string       `json:"action"`
	Reason     string       `json:"reason,omitempty"`
	SaleID     string       `json:"sale_id"`
	PieceID    string       `json:"piece_id"`
	Snapshot   SaleSnapshot `json:"snapshot"`
	RecordedAt time.Time    `json:"recorded_at"`
}
