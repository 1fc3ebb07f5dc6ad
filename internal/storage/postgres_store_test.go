package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/landsales/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

func newStore(mockDB *mock_database.MockDB) *storage.PostgresStore {
	return storage.NewPostgresStore(
		mockDB,
		postgresql.NewPieceRepo(mockDB),
		postgresql.NewSaleRepo(mockDB),
		postgresql.NewHistoryRepo(),
		postgresql.NewAuditRepo(),
		postgresql.NewOutboxTaskRepo(3),
		"sale_audit",
	)
}

func TestPostgresStore_UpdatePieceStatusIf(t *testing.T) {
	ctx := context.Background()

	t.Run("applied writes history in the same transaction", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		store := newStore(mockDB)

		gomock.InOrder(
			mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil),
			mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
				gomock.Eq("piece-1"), gomock.Eq(repository.PieceReserved), gomock.Eq(repository.PieceAvailable), gomock.Any()).
				Return(pgconn.CommandTag("UPDATE 1"), nil),
			mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
				gomock.Eq("piece-1"), gomock.Eq(repository.PieceReserved), gomock.Eq(repository.PieceAvailable),
				gomock.Eq("consistency"), gomock.Any()).
				Return(pgconn.CommandTag("INSERT 0 1"), nil),
			mockTx.EXPECT().Commit(gomock.Any()).Return(nil),
		)

		applied, err := store.UpdatePieceStatusIf(ctx, "piece-1", repository.PieceReserved, repository.PieceAvailable)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("lost swap writes no history", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		store := newStore(mockDB)

		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)
		mockTx.EXPECT().Commit(gomock.Any()).Return(nil)

		applied, err := store.UpdatePieceStatusIf(ctx, "piece-1", repository.PieceReserved, repository.PieceAvailable)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("history failure rolls back", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		store := newStore(mockDB)

		dbErr := errors.New("disk full")
		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 1"), nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dbErr)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		applied, err := store.UpdatePieceStatusIf(ctx, "piece-1", repository.PieceReserved, repository.PieceAvailable)
		assert.ErrorIs(t, err, dbErr)
		assert.False(t, applied)
	})

	t.Run("begin failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		store := newStore(mockDB)

		dbErr := errors.New("too many connections")
		mockDB.EXPECT().BeginTx(gomock.Any()).Return(nil, dbErr)

		_, err := store.UpdatePieceStatusIf(ctx, "piece-1", repository.PieceReserved, repository.PieceAvailable)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestPostgresStore_AppendSaleAudit(t *testing.T) {
	ctx := context.Background()
	entry := repository.SaleAuditEntry{
		Action:     repository.AuditActionStaleCancelled,
		SaleID:     "sale-1",
		PieceID:    "piece-1",
		RecordedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("audit row and outbox task commit together", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		store := newStore(mockDB)

		gomock.InOrder(
			mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil),
			mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("sale-1"), gomock.Eq("piece-1"), gomock.Any(), gomock.Any()).
				Return(pgconn.CommandTag("INSERT 0 1"), nil),
			mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Eq(repository.TaskStatusCreated), gomock.Any(), gomock.Eq("sale_audit"), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
					payload, ok := args[2].(json.RawMessage)
					require.True(t, ok)
					var decoded repository.SaleAuditEntry
					require.NoError(t, json.Unmarshal(payload, &decoded))
					assert.Equal(t, "sale-1", decoded.SaleID)
					return pgconn.CommandTag("INSERT 0 1"), nil
				}),
			mockTx.EXPECT().Commit(gomock.Any()).Return(nil),
		)

		require.NoError(t, store.AppendSaleAudit(ctx, entry))
	})

	t.Run("outbox failure rolls back the audit row", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		store := newStore(mockDB)

		dbErr := errors.New("outbox table missing")
		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("INSERT 0 1"), nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dbErr)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		assert.ErrorIs(t, store.AppendSaleAudit(ctx, entry), dbErr)
	})
}

func TestPostgresStore_UpdateSaleStatusIf(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	store := newStore(mockDB)

	mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(),
		gomock.Eq("sale-1"), gomock.Eq(repository.SalePending), gomock.Eq(repository.SaleCancelled), gomock.Any()).
		Return(pgconn.CommandTag("UPDATE 1"), nil)

	applied, err := store.UpdateSaleStatusIf(context.Background(), "sale-1", repository.SalePending, repository.SaleCancelled)
	require.NoError(t, err)
	assert.True(t, applied)
}
