package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/maintenance"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/oplock"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	mock_server "gitlab.ozon.dev/pupkingeorgij/landsales/internal/server/mocks"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage/memstore"
)

type testServer struct {
	srv       *Server
	service   *mock_server.MockService
	operators *mock_server.MockOperatorRepo
	locks     *mock_server.MockLocks
	runner    *mock_server.MockMaintenanceStatus
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)

	ts := &testServer{
		service:   mock_server.NewMockService(ctrl),
		operators: mock_server.NewMockOperatorRepo(ctrl),
		locks:     mock_server.NewMockLocks(ctrl),
		runner:    mock_server.NewMockMaintenanceStatus(ctrl),
	}
	ts.srv = New(ts.service, ts.operators, ts.locks, ts.runner, nil)
	ts.handler = ts.srv.Handler()

	ctx, cancel := context.WithCancel(context.Background())
	ts.srv.AuditManager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		ts.srv.AuditManager.Shutdown(context.Background())
	})
	return ts
}

func (ts *testServer) allowAdmin() {
	ts.operators.EXPECT().Validate(gomock.Any(), "admin", "secret").Return(true, nil).AnyTimes()
}

func (ts *testServer) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.SetBasicAuth("admin", "secret")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestBasicAuth(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		ts := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/pieces/p1/consistency", nil)
		rr := httptest.NewRecorder()
		ts.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, `Basic realm="Restricted"`, rr.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
	})

	t.Run("wrong password", func(t *testing.T) {
		ts := newTestServer(t)
		ts.operators.EXPECT().Validate(gomock.Any(), "admin", "secret").Return(false, nil)

		rr := ts.do(http.MethodGet, "/pieces/p1/consistency")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.operators.EXPECT().Validate(gomock.Any(), "admin", "secret").Return(false, errors.New("pool closed"))

		rr := ts.do(http.MethodGet, "/pieces/p1/consistency")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandleCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMocks     func(ts *testServer)
		expectedStatus int
		check          func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name: "inconsistent piece",
			setupMocks: func(ts *testServer) {
				ts.service.EXPECT().Check(gomock.Any(), "p1").Return(consistency.Report{
					PieceID: "p1",
					Status:  repository.PieceReserved,
					Issues:  []string{"piece is Reserved but has no pending sale"},
					Action:  consistency.ActionReleasePiece,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				report := decode[consistency.Report](t, rr)
				assert.False(t, report.Consistent)
				assert.Equal(t, consistency.ActionReleasePiece, report.Action)
			},
		},
		{
			name: "unknown piece",
			setupMocks: func(ts *testServer) {
				ts.service.EXPECT().Check(gomock.Any(), "p1").Return(consistency.Report{PieceID: "p1", NotFound: true}, nil)
			},
			expectedStatus: http.StatusNotFound,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.True(t, decode[consistency.Report](t, rr).NotFound)
			},
		},
		{
			name: "store error",
			setupMocks: func(ts *testServer) {
				ts.service.EXPECT().Check(gomock.Any(), "p1").Return(consistency.Report{}, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"error":"Error: connection reset"}`, rr.Body.String())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.allowAdmin()
			tc.setupMocks(ts)

			rr := ts.do(http.MethodGet, "/pieces/p1/consistency")

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			tc.check(t, rr)
		})
	}
}

func TestHandleFix(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Fix(gomock.Any(), "p1").Return(consistency.FixResult{
			PieceID: "p1",
			Action:  consistency.ActionReleasePiece,
			Success: true,
			Applied: true,
			From:    repository.PieceReserved,
			To:      repository.PieceAvailable,
		}, nil)

		rr := ts.do(http.MethodPost, "/pieces/p1/fix")

		require.Equal(t, http.StatusOK, rr.Code)
		res := decode[consistency.FixResult](t, rr)
		assert.True(t, res.Applied)
		assert.Equal(t, repository.PieceAvailable, res.To)
	})

	t.Run("manual review", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Fix(gomock.Any(), "p1").Return(consistency.FixResult{
			PieceID:      "p1",
			Action:       consistency.ActionReviewSales,
			ManualReview: true,
		}, nil)

		rr := ts.do(http.MethodPost, "/pieces/p1/fix")
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown piece", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Fix(gomock.Any(), "p1").
			Return(consistency.FixResult{}, fmt.Errorf("get piece p1: %w", repository.ErrObjectNotFound))

		rr := ts.do(http.MethodPost, "/pieces/p1/fix")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleReap(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMocks     func(ts *testServer)
		expectedStatus int
	}{
		{
			name:   "default age",
			target: "/pieces/p1/reap",
			setupMocks: func(ts *testServer) {
				ts.service.EXPECT().ReapPiece(gomock.Any(), "p1", time.Duration(0)).
					Return(consistency.ReapResult{PieceID: "p1", StaleFound: 1, Cancelled: 1}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "explicit age",
			target: "/pieces/p1/reap?max_age=30m",
			setupMocks: func(ts *testServer) {
				ts.service.EXPECT().ReapPiece(gomock.Any(), "p1", 30*time.Minute).
					Return(consistency.ReapResult{PieceID: "p1"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid age",
			target:         "/pieces/p1/reap?max_age=soon",
			setupMocks:     func(ts *testServer) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative age",
			target:         "/pieces/p1/reap?max_age=-1h",
			setupMocks:     func(ts *testServer) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.allowAdmin()
			tc.setupMocks(ts)

			rr := ts.do(http.MethodPost, tc.target)
			assert.Equal(t, tc.expectedStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestHandleClaim(t *testing.T) {
	t.Run("claimed", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Claim(gomock.Any(), "p1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts ...consistency.ClaimOption) (consistency.ClaimResult, error) {
				assert.Empty(t, opts)
				return consistency.ClaimResult{PieceID: "p1", Success: true, Status: repository.PieceAvailable}, nil
			})

		rr := ts.do(http.MethodPost, "/pieces/p1/claim")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, decode[consistency.ClaimResult](t, rr).Success)
	})

	t.Run("options from query", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Claim(gomock.Any(), "p1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts ...consistency.ClaimOption) (consistency.ClaimResult, error) {
				assert.Len(t, opts, 2)
				return consistency.ClaimResult{PieceID: "p1", Success: true}, nil
			})

		rr := ts.do(http.MethodPost, "/pieces/p1/claim?max_age=2h&cancel_stale=false")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejected", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Claim(gomock.Any(), "p1", gomock.Any()).Return(consistency.ClaimResult{
			PieceID:           "p1",
			Status:            repository.PieceReserved,
			ConflictingSaleID: "s1",
			Reason:            "piece is Reserved with pending sale s1",
		}, nil)

		rr := ts.do(http.MethodPost, "/pieces/p1/claim")

		require.Equal(t, http.StatusConflict, rr.Code)
		res := decode[consistency.ClaimResult](t, rr)
		assert.Equal(t, "s1", res.ConflictingSaleID)
		assert.NotEmpty(t, res.Reason)
	})

	t.Run("invalid cancel_stale", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()

		rr := ts.do(http.MethodPost, "/pieces/p1/claim?cancel_stale=maybe")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid value for 'cancel_stale' parameter"}`, rr.Body.String())
	})

	t.Run("hold keeps the lock", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().ClaimAndLock(gomock.Any(), "p1", gomock.Any()).
			Return(consistency.ClaimResult{PieceID: "p1", Success: true, Status: repository.PieceAvailable}, func() {
				t.Error("lock released by the claim request")
			}, nil)

		rr := ts.do(http.MethodPost, "/pieces/p1/claim?hold=true")

		require.Equal(t, http.StatusOK, rr.Code)
		body := decode[heldClaim](t, rr)
		assert.True(t, body.Success)
		assert.True(t, body.Locked)
	})

	t.Run("invalid hold", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()

		rr := ts.do(http.MethodPost, "/pieces/p1/claim?hold=later")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("store error", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.service.EXPECT().Claim(gomock.Any(), "p1", gomock.Any()).
			Return(consistency.ClaimResult{PieceID: "p1"}, errors.New("database is down"))

		rr := ts.do(http.MethodPost, "/pieces/p1/claim")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHandleSweep(t *testing.T) {
	ts := newTestServer(t)
	ts.allowAdmin()
	ts.service.EXPECT().Sweep(gomock.Any(), 90*time.Minute).
		Return(consistency.ReapResult{StaleFound: 3, Cancelled: 3, PiecesFixed: 3}, nil)

	rr := ts.do(http.MethodPost, "/maintenance/sweep?max_age=90m")

	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[consistency.ReapResult](t, rr)
	assert.Equal(t, 3, res.Cancelled)
	assert.Equal(t, 3, res.PiecesFixed)
}

func TestHandleLocks(t *testing.T) {
	t.Run("held", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.locks.EXPECT().Locked().Return([]string{"p1", "p2"})

		rr := ts.do(http.MethodGet, "/locks")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"locked":["p1","p2"]}`, rr.Body.String())
	})

	t.Run("none", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.locks.EXPECT().Locked().Return(nil)

		rr := ts.do(http.MethodGet, "/locks")
		assert.JSONEq(t, `{"locked":[]}`, rr.Body.String())
	})
}

func TestHandleLock(t *testing.T) {
	t.Run("locked", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.locks.EXPECT().Lock("p1").Return(true)

		rr := ts.do(http.MethodPost, "/pieces/p1/lock")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"piece_id":"p1","locked":true}`, rr.Body.String())
	})

	t.Run("already locked", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.locks.EXPECT().Lock("p1").Return(false)

		rr := ts.do(http.MethodPost, "/pieces/p1/lock")
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.JSONEq(t, `{"error":"piece is already locked"}`, rr.Body.String())
	})

	t.Run("unlock", func(t *testing.T) {
		ts := newTestServer(t)
		ts.allowAdmin()
		ts.locks.EXPECT().Unlock("p1")

		rr := ts.do(http.MethodDelete, "/pieces/p1/lock")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"piece_id":"p1","locked":false}`, rr.Body.String())
	})
}

func TestLockedPieceSkippedBySweep(t *testing.T) {
	store := memstore.New()
	locks := oplock.NewRegistry(zap.NewNop())
	service := consistency.NewService(store, locks, nil, zap.NewNop(), consistency.Config{})

	ctrl := gomock.NewController(t)
	operators := mock_server.NewMockOperatorRepo(ctrl)
	operators.EXPECT().Validate(gomock.Any(), "admin", "secret").Return(true, nil).AnyTimes()

	srv := New(service, operators, locks, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	srv.AuditManager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.AuditManager.Shutdown(context.Background())
	})
	ts := &testServer{srv: srv, handler: srv.Handler()}

	old := time.Now().Add(-2 * time.Hour)
	store.PutPiece(repository.Piece{ID: "p1", Status: repository.PieceReserved, UpdatedAt: old})
	store.PutSale(repository.Sale{ID: "s1", PieceID: "p1", Status: repository.SalePending, CreatedAt: old})

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/pieces/p1/lock").Code)

	rr := ts.do(http.MethodPost, "/maintenance/sweep?max_age=1h")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[consistency.ReapResult](t, rr)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Cancelled)
	sale, _ := store.Sale("s1")
	assert.Equal(t, repository.SalePending, sale.Status)

	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/pieces/p1/lock").Code)

	rr = ts.do(http.MethodPost, "/maintenance/sweep?max_age=1h")
	require.Equal(t, http.StatusOK, rr.Code)
	res = decode[consistency.ReapResult](t, rr)
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, 1, res.PiecesFixed)
	piece, _ := store.Piece("p1")
	assert.Equal(t, repository.PieceAvailable, piece.Status)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.EXPECT().Status().Return(maintenance.Status{Runs: 4, LastError: "database is down"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Status      string             `json:"status"`
		Maintenance maintenance.Status `json:"maintenance"`
	}](t, rr)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, 4, body.Maintenance.Runs)
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "landsales_operation_locks_held")
}

func TestAuditLogMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mock_server.NewMockService(ctrl)
	operators := mock_server.NewMockOperatorRepo(ctrl)
	operators.EXPECT().Validate(gomock.Any(), "admin", "secret").Return(true, nil)
	service.EXPECT().Claim(gomock.Any(), "p7", gomock.Any()).
		Return(consistency.ClaimResult{PieceID: "p7", Success: true}, nil)

	srv := New(service, operators, mock_server.NewMockLocks(ctrl), nil, nil)

	var (
		mu      sync.Mutex
		entries []AuditLogEntry
	)
	srv.AuditManager.flush = func(_ int, batch []AuditLogEntry) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, batch...)
	}
	srv.AuditManager.Start(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/pieces/p7/claim?max_age=45m", nil)
	req.SetBasicAuth("admin", "secret")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	srv.AuditManager.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "claim", entry.Route)
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, "p7", entry.PieceID)
	assert.Equal(t, "admin", entry.Operator)
	assert.Equal(t, "max_age=45m", entry.Query)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.Contains(t, entry.Response, `"success":true`)
}
