package service

import (
	"context"
	"time"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/specification"
	"live-relay-be/internal/repository/unitofwork"
	"live-relay-be/pkg/liveness"
)

type ILivenessService interface {
	ListLive(ctx context.Context) (liveness.Listing, error)
}

type livenessService struct {
	uowFactory     unitofwork.RepositoryFactory
	staleThreshold time.Duration
	now            func() time.Time
}

func NewLivenessService(uowFactory unitofwork.RepositoryFactory, staleThreshold time.Duration) ILivenessService {
	if staleThreshold <= 0 {
		staleThreshold = liveness.DefaultStaleThreshold
	}
	return &livenessService{
		uowFactory:     uowFactory,
		staleThreshold: staleThreshold,
		now:            time.Now,
	}
}

// ListLive only reads. Stale sessions are filtered out, not repaired.
func (s *livenessService) ListLive(ctx context.Context) (liveness.Listing, error) {
	sessions, err := claimedSessions(ctx, s.uowFactory)
	if err != nil {
		return liveness.Listing{}, err
	}
	return liveness.Partition(sessions, s.now(), s.staleThreshold), nil
}

func claimedSessions(ctx context.Context, uowFactory unitofwork.RepositoryFactory) ([]*entity.Session, error) {
	return uowFactory.NewUnitOfWork(ctx).LiveSessionRepository().FindAll(ctx,
		specification.ActiveOnly{},
		specification.WithBroadcaster{},
	)
}

// ReconcileSweeper periodically reconciles every session whose slot is
// claimed, so a vanished broadcaster is cleared even when no listener
// comes along to trigger the repair.
type ReconcileSweeper struct {
	uowFactory unitofwork.RepositoryFactory
	sessions   ISessionService
	interval   time.Duration
	logger     logger.ILogger
}

func NewReconcileSweeper(uowFactory unitofwork.RepositoryFactory, sessions ISessionService, interval time.Duration, logger logger.ILogger) *ReconcileSweeper {
	return &ReconcileSweeper{
		uowFactory: uowFactory,
		sessions:   sessions,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until ctx is done. A non-positive interval disables the sweeper.
func (w *ReconcileSweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("RECONCILE_SWEEPER", "Sweeper disabled", nil)
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("RECONCILE_SWEEPER", "Sweeper started", map[string]interface{}{"interval": w.interval.String()})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of repaired sessions.
func (w *ReconcileSweeper) Sweep(ctx context.Context) int {
	sessions, err := claimedSessions(ctx, w.uowFactory)
	if err != nil {
		w.logger.Error("RECONCILE_SWEEPER", "Failed to list claimed sessions", map[string]interface{}{"error": err.Error()})
		return 0
	}

	repaired := 0
	for _, session := range sessions {
		if ctx.Err() != nil {
			break
		}
		if w.sessions.ReconcileBroadcaster(ctx, session.Id) {
			repaired++
		}
	}

	if repaired > 0 {
		w.logger.Info("RECONCILE_SWEEPER", "Sweep repaired sessions", map[string]interface{}{"repaired": repaired, "checked": len(sessions)})
	}
	return repaired
}
