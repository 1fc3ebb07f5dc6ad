package consistency

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/retry"
)

type Config struct {
	MaxStaleAge time.Duration
	GracePeriod time.Duration
	Retry       retry.Config
}

// Service bundles the components over one store, lock registry and event
// broadcaster.
type Service struct {
	checker      *Checker
	fixer        *Fixer
	reaper       *Reaper
	orchestrator *Orchestrator
}

func NewService(store Store, locks Locks, events *notify.Broadcaster, logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	checker := NewChecker(store)
	fixer := NewFixer(store, checker, locks, events, logger.Named("fixer"))
	reaper := NewReaper(store, fixer, locks, events, logger.Named("reaper"), ReaperConfig{
		MaxStaleAge: cfg.MaxStaleAge,
		GracePeriod: cfg.GracePeriod,
	})
	orchestrator := NewOrchestrator(store, reaper, fixer, locks, events, logger.Named("claim"), cfg.Retry)

	return &Service{
		checker:      checker,
		fixer:        fixer,
		reaper:       reaper,
		orchestrator: orchestrator,
	}
}

func (s *Service) Check(ctx context.Context, pieceID string) (Report, error) {
	return s.checker.Check(ctx, pieceID)
}

func (s *Service) Fix(ctx context.Context, pieceID string) (FixResult, error) {
	return s.fixer.Fix(ctx, pieceID)
}

func (s *Service) ReapPiece(ctx context.Context, pieceID string, maxAge time.Duration) (ReapResult, error) {
	return s.reaper.ReapPiece(ctx, pieceID, maxAge)
}

func (s *Service) Sweep(ctx context.Context, maxAge time.Duration) (ReapResult, error) {
	return s.reaper.Sweep(ctx, maxAge)
}

func (s *Service) Claim(ctx context.Context, pieceID string, opts ...ClaimOption) (ClaimResult, error) {
	return s.orchestrator.Claim(ctx, pieceID, opts...)
}

func (s *Service) ClaimAndLock(ctx context.Context, pieceID string, opts ...ClaimOption) (ClaimResult, func(), error) {
	return s.orchestrator.ClaimAndLock(ctx, pieceID, opts...)
}
