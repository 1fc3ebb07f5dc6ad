package consistency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/oplock"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/retry"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage/memstore"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	locks  *oplock.Registry
	events *notify.Broadcaster
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(s *memstore.Store) Store { return s })
}

// newFixtureWith lets a test put a wrapper between the service and the store.
func newFixtureWith(t *testing.T, wrap func(*memstore.Store) Store) *fixture {
	t.Helper()

	store := memstore.New()
	store.SetClock(func() time.Time { return testNow })
	locks := oplock.NewRegistry(zap.NewNop())
	events := notify.NewBroadcaster(64, zap.NewNop())
	t.Cleanup(events.Close)

	svc := NewService(wrap(store), locks, events, zap.NewNop(), Config{
		Retry: retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	svc.reaper.timeNow = func() time.Time { return testNow }

	return &fixture{store: store, locks: locks, events: events, svc: svc}
}

func (f *fixture) piece(id string, status repository.PieceStatus, updatedAgo time.Duration) {
	f.store.PutPiece(repository.Piece{
		ID:        id,
		Number:    "1",
		LandName:  "North field",
		Status:    status,
		UpdatedAt: testNow.Add(-updatedAgo),
	})
}

func (f *fixture) sale(id, pieceID string, status repository.SaleStatus, age time.Duration) {
	f.store.PutSale(repository.Sale{
		ID:        id,
		PieceID:   pieceID,
		ClientID:  "client-" + id,
		Status:    status,
		Price:     decimal.RequireFromString("15000.50"),
		Deposit:   decimal.RequireFromString("1500"),
		Fee:       decimal.RequireFromString("250.25"),
		CreatedAt: testNow.Add(-age),
	})
}

func (f *fixture) pieceStatus(t *testing.T, id string) repository.PieceStatus {
	t.Helper()
	p, ok := f.store.Piece(id)
	if !ok {
		t.Fatalf("piece %s missing", id)
	}
	return p.Status
}

func (f *fixture) saleStatus(t *testing.T, id string) repository.SaleStatus {
	t.Helper()
	s, ok := f.store.Sale(id)
	if !ok {
		t.Fatalf("sale %s missing", id)
	}
	return s.Status
}

// drain returns the events already buffered on ch.
func drain(ch <-chan notify.Event) []notify.Event {
	var out []notify.Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(events []notify.Event) []notify.EventType {
	out := make([]notify.EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
