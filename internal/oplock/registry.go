// Package oplock tracks pieces that a foreground operation in this process is
// currently working on. It is advisory: other processes never see it.
package oplock

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
)

type Registry struct {
	mu     sync.RWMutex
	locked map[string]struct{}
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		locked: make(map[string]struct{}),
		logger: logger,
	}
}

// Lock marks pieceID as owned and reports false when it already was.
func (r *Registry) Lock(pieceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.locked[pieceID]; held {
		return false
	}
	r.locked[pieceID] = struct{}{}
	metrics.OperationLocksHeld.Set(float64(len(r.locked)))
	r.logger.Debug("piece locked", zap.String("piece_id", pieceID))
	return true
}

func (r *Registry) Unlock(pieceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.locked[pieceID]; !held {
		return
	}
	delete(r.locked, pieceID)
	metrics.OperationLocksHeld.Set(float64(len(r.locked)))
	r.logger.Debug("piece unlocked", zap.String("piece_id", pieceID))
}

func (r *Registry) IsLocked(pieceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, held := r.locked[pieceID]
	return held
}

// Locked returns the held piece ids in sorted order.
func (r *Registry) Locked() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.locked))
	for id := range r.locked {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
