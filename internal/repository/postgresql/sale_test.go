package postgresql_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/landsales/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository/postgresql"
)

func TestSaleRepo_ListByPiece(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("amounts decoded", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("piece-1")).
			DoAndReturn(func(_ context.Context, dest any, _ string, _ ...any) error {
				return scanRows(dest, map[string]any{
					"ID": "sale-1", "PieceID": "piece-1", "ClientID": "client-1", "Status": "pending",
					"Price": "120000.00", "Deposit": "12000.50", "Fee": "", "CreatedAt": created,
				})
			})

		sales, err := repo.ListByPiece(ctx, "piece-1")
		require.NoError(t, err)
		require.Len(t, sales, 1)

		sale := sales[0]
		assert.Equal(t, "sale-1", sale.ID)
		assert.Equal(t, repository.SalePending, sale.Status)
		assert.Equal(t, "120000", sale.Price.String())
		assert.Equal(t, "12000.5", sale.Deposit.String())
		assert.True(t, sale.Fee.IsZero())
		assert.Equal(t, created, sale.CreatedAt)
	})

	t.Run("malformed amount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, dest any, _ string, _ ...any) error {
				return scanRows(dest, map[string]any{"ID": "sale-1", "Price": "twelve"})
			})

		_, err := repo.ListByPiece(ctx, "piece-1")
		assert.Error(t, err)
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		dbErr := errors.New("relation does not exist")
		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(dbErr)

		_, err := repo.ListByPiece(ctx, "piece-1")
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestSaleRepo_ListPendingCreatedBefore(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)

	t.Run("single piece", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Eq(repository.SalePending), gomock.Eq(cutoff), gomock.Eq("piece-1")).
			DoAndReturn(func(_ context.Context, _ any, query string, _ ...any) error {
				assert.Contains(t, query, "created_at < $2")
				assert.Contains(t, query, "piece_id = $3")
				return nil
			})

		sales, err := repo.ListPendingCreatedBefore(ctx, "piece-1", cutoff)
		require.NoError(t, err)
		assert.Empty(t, sales)
	})

	t.Run("all pieces", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Eq(repository.SalePending), gomock.Eq(cutoff)).
			DoAndReturn(func(_ context.Context, _ any, query string, _ ...any) error {
				assert.NotContains(t, query, "piece_id =")
				return nil
			})

		_, err := repo.ListPendingCreatedBefore(ctx, "", cutoff)
		require.NoError(t, err)
	})
}

func TestSaleRepo_UpdateStatusIf(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(),
			gomock.Eq("sale-1"), gomock.Eq(repository.SalePending), gomock.Eq(repository.SaleCancelled), gomock.Eq(now)).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		applied, err := repo.UpdateStatusIf(ctx, "sale-1", repository.SalePending, repository.SaleCancelled, now)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("no longer pending", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewSaleRepo(mockDB)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		applied, err := repo.UpdateStatusIf(ctx, "sale-1", repository.SalePending, repository.SaleCancelled, now)
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

// scanRows fills dest, a pointer to a slice of struct pointers, by field name
// the way pgxscan would.
func scanRows(dest any, rows ...map[string]any) error {
	slice := reflect.ValueOf(dest).Elem()
	elemType := slice.Type().Elem().Elem()
	for _, row := range rows {
		item := reflect.New(elemType)
		for name, value := range row {
			field := item.Elem().FieldByName(name)
			if !field.IsValid() {
				return fmt.Errorf("no field %s in %s", name, elemType)
			}
			field.Set(reflect.ValueOf(value))
		}
		slice.Set(reflect.Append(slice, item))
	}
	return nil
}
