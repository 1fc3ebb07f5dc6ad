package repository

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrObjectNotFound = errors.New("not found")

type PieceStatus string

const (
	PieceAvailable PieceStatus = "Available"
	PieceReserved  PieceStatus = "Reserved"
	PieceSold      PieceStatus = "Sold"
)

type SaleStatus string

const (
	SalePending   SaleStatus = "pending"
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

type Piece struct {
	ID        string      `db:"id"`
	Number    string      `db:"number"`
	LandName  string      `db:"land_name"`
	Status    PieceStatus `db:"status"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// Sale amounts are opaque to the consistency layer; they only travel into audit snapshots.
type Sale struct {
	ID        string
	PieceID   string
	ClientID  string
	Status    SaleStatus
	Price     decimal.Decimal
	Deposit   decimal.Decimal
	Fee       decimal.Decimal
	CreatedAt time.Time
}

type PieceHistoryEntry struct {
	ID        int64       `db:"id"`
	PieceID   string      `db:"piece_id"`
	OldStatus PieceStatus `db:"old_status"`
	NewStatus PieceStatus `db:"new_status"`
	Source    string      `db:"source"`
	ChangedAt time.Time   `db:"changed_at"`
}

type Operator struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
