// Package memstore keeps pieces and sales in memory behind one mutex. It backs
// the consistency and command tests, and can be told to fail
// individual operations.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

const (
	OpGetPiece            = "GetPiece"
	OpListSalesByPiece    = "ListSalesByPiece"
	OpListPendingSales    = "ListPendingSalesCreatedBefore"
	OpListReservedPieces  = "ListReservedPieces"
	OpUpdatePieceStatusIf = "UpdatePieceStatusIf"
	OpUpdateSaleStatusIf  = "UpdateSaleStatusIf"
	OpAppendSaleAudit     = "AppendSaleAudit"
)

type Store struct {
	mu        sync.Mutex
	pieces    map[string]repository.Piece
	sales     map[string]repository.Sale
	audit     []repository.SaleAuditEntry
	history   []repository.PieceHistoryEntry
	failures  map[string]error
	saleFails map[string]error
	calls     map[string]int
	timeNow   func() time.Time
}

func New() *Store {
	return &Store{
		pieces:    make(map[string]repository.Piece),
		sales:     make(map[string]repository.Sale),
		failures:  make(map[string]error),
		saleFails: make(map[string]error),
		calls:     make(map[string]int),
		timeNow:   time.Now,
	}
}

// SetClock replaces the clock used to stamp updated_at on writes.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeNow = now
}

// FailOn makes every later call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// FailSaleUpdate makes status updates of one sale return err.
func (s *Store) FailSaleUpdate(saleID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.saleFails, saleID)
		return
	}
	s.saleFails[saleID] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) PutPiece(p repository.Piece) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pieces[p.ID] = p
}

func (s *Store) PutSale(sale repository.Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[sale.ID] = sale
}

func (s *Store) Piece(id string) (repository.Piece, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pieces[id]
	return p, ok
}

func (s *Store) Sale(id string) (repository.Sale, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	return sale, ok
}

func (s *Store) AuditEntries() []repository.SaleAuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.SaleAuditEntry(nil), s.audit...)
}

func (s *Store) History() []repository.PieceHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.PieceHistoryEntry(nil), s.history...)
}

// enter counts the call and returns the injected failure, if any. The caller
// must hold s.mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) GetPiece(_ context.Context, id string) (*repository.Piece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetPiece); err != nil {
		return nil, err
	}
	p, ok := s.pieces[id]
	if !ok {
		return nil, fmt.Errorf("piece %s: %w", id, repository.ErrObjectNotFound)
	}
	return &p, nil
}

func (s *Store) ListSalesByPiece(_ context.Context, pieceID string) ([]*repository.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListSalesByPiece); err != nil {
		return nil, err
	}
	return s.filterSales(func(sale repository.Sale) bool {
		return sale.PieceID == pieceID
	}), nil
}

func (s *Store) ListPendingSalesCreatedBefore(_ context.Context, pieceID string, cutoff time.Time) ([]*repository.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListPendingSales); err != nil {
		return nil, err
	}
	return s.filterSales(func(sale repository.Sale) bool {
		if pieceID != "" && sale.PieceID != pieceID {
			return false
		}
		return sale.Status == repository.SalePending && sale.CreatedAt.Before(cutoff)
	}), nil
}

func (s *Store) ListReservedPieces(_ context.Context, updatedBefore time.Time) ([]*repository.Piece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListReservedPieces); err != nil {
		return nil, err
	}
	var out []*repository.Piece
	for _, p := range s.pieces {
		if p.Status == repository.PieceReserved && p.UpdatedAt.Before(updatedBefore) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePieceStatusIf(_ context.Context, id string, expected, next repository.PieceStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdatePieceStatusIf); err != nil {
		return false, err
	}
	p, ok := s.pieces[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	now := s.timeNow().UTC()
	p.Status = next
	p.UpdatedAt = now
	s.pieces[id] = p
	s.history = append(s.history, repository.PieceHistoryEntry{
		ID:        int64(len(s.history) + 1),
		PieceID:   id,
		OldStatus: expected,
		NewStatus: next,
		Source:    "consistency",
		ChangedAt: now,
	})
	return true, nil
}

func (s *Store) UpdateSaleStatusIf(_ context.Context, id string, expected, next repository.SaleStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateSaleStatusIf); err != nil {
		return false, err
	}
	if err := s.saleFails[id]; err != nil {
		return false, err
	}
	sale, ok := s.sales[id]
	if !ok || sale.Status != expected {
		return false, nil
	}
	sale.Status = next
	s.sales[id] = sale
	return true, nil
}

func (s *Store) AppendSaleAudit(_ context.Context, entry repository.SaleAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAppendSaleAudit); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.audit = append(s.audit, entry)
	return nil
}

// filterSales returns copies ordered by creation time. The caller must hold s.mu.
func (s *Store) filterSales(keep func(repository.Sale) bool) []*repository.Sale {
	var out []*repository.Sale
	for _, sale := range s.sales {
		if keep(sale) {
			sale := sale
			out = append(out, &sale)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
