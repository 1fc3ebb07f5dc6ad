package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

const saleColumns = `id, piece_id, client_id, status,
            price::text AS price, deposit::text AS deposit, fee::text AS fee, created_at`

// saleRow keeps numeric columns as text so they convert losslessly into decimal.Decimal.
type saleRow struct {
	ID        string    `db:"id"`
	PieceID   string    `db:"piece_id"`
	ClientID  string    `db:"client_id"`
	Status    string    `db:"status"`
	Price     string    `db:"price"`
	Deposit   string    `db:"deposit"`
	Fee       string    `db:"fee"`
	CreatedAt time.Time `db:"created_at"`
}

func (row *saleRow) toSale() (*repository.Sale, error) {
	sale := &repository.Sale{
		ID:        row.ID,
		PieceID:   row.PieceID,
		ClientID:  row.ClientID,
		Status:    repository.SaleStatus(row.Status),
		CreatedAt: row.CreatedAt,
	}
	var err error
	if sale.Price, err = parseAmount(row.Price); err != nil {
		return nil, fmt.Errorf("sale %s price: %w", row.ID, err)
	}
	if sale.Deposit, err = parseAmount(row.Deposit); err != nil {
		return nil, fmt.Errorf("sale %s deposit: %w", row.ID, err)
	}
	if sale.Fee, err = parseAmount(row.Fee); err != nil {
		return nil, fmt.Errorf("sale %s fee: %w", row.ID, err)
	}
	return sale, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func toSales(rows []*saleRow) ([]*repository.Sale, error) {
	sales := make([]*repository.Sale, 0, len(rows))
	for _, row := range rows {
		sale, err := row.toSale()
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

type SaleRepo struct {
	db db.DB
}

func NewSaleRepo(db db.DB) storage.SaleRepository {
	return &SaleRepo{db: db}
}

func (r *SaleRepo) ListByPiece(ctx context.Context, pieceID string) ([]*repository.Sale, error) {
	var rows []*saleRow
	err := r.db.Select(ctx, &rows, `
        SELECT `+saleColumns+`
        FROM sales
        WHERE piece_id = $1
        ORDER BY created_at ASC
    `, pieceID)
	if err != nil {
		return nil, fmt.Errorf("list sales of piece %s: %w", pieceID, err)
	}
	return toSales(rows)
}

// ListPendingCreatedBefore returns pending sales strictly older than cutoff.
// An empty pieceID lists across all pieces.
func (r *SaleRepo) ListPendingCreatedBefore(ctx context.Context, pieceID string, cutoff time.Time) ([]*repository.Sale, error) {
	query := `
        SELECT ` + saleColumns + `
        FROM sales
        WHERE status = $1 AND created_at < $2`
	args := []any{repository.SalePending, cutoff}

	if pieceID != "" {
		query += " AND piece_id = $3"
		args = append(args, pieceID)
	}

	query += " ORDER BY created_at ASC"

	var rows []*saleRow
	if err := r.db.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list stale pending sales: %w", err)
	}
	return toSales(rows)
}

func (r *SaleRepo) UpdateStatusIf(ctx context.Context, id string, expected, next repository.SaleStatus, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE sales
        SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `, id, expected, next, now)
	if err != nil {
		return false, fmt.Errorf("update sale %s status: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
