package service

import (
	"context"
	"sync"

	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IPresenceService keeps the soft viewerCount. Every error is logged and
// swallowed; the count is a hint, not an invariant.
type IPresenceService interface {
	Enter(ctx context.Context, sessionId uuid.UUID, connId string) int
	Leave(ctx context.Context, sessionId uuid.UUID, connId string) int
}

type presenceService struct {
	uowFactory unitofwork.RepositoryFactory
	rdb        *redis.Client
	logger     logger.ILogger

	// used when rdb is nil
	mu    sync.Mutex
	local map[uuid.UUID]map[string]struct{}
}

func NewPresenceService(uowFactory unitofwork.RepositoryFactory, rdb *redis.Client, logger logger.ILogger) IPresenceService {
	return &presenceService{
		uowFactory: uowFactory,
		rdb:        rdb,
		logger:     logger,
		local:      make(map[uuid.UUID]map[string]struct{}),
	}
}

func viewersKey(sessionId uuid.UUID) string {
	return "live:viewers:" + sessionId.String()
}

func (s *presenceService) Enter(ctx context.Context, sessionId uuid.UUID, connId string) int {
	count, err := s.update(ctx, sessionId, connId, true)
	return s.store(ctx, sessionId, count, err)
}

func (s *presenceService) Leave(ctx context.Context, sessionId uuid.UUID, connId string) int {
	count, err := s.update(ctx, sessionId, connId, false)
	return s.store(ctx, sessionId, count, err)
}

func (s *presenceService) update(ctx context.Context, sessionId uuid.UUID, connId string, enter bool) (int, error) {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		viewers, ok := s.local[sessionId]
		if !ok {
			viewers = make(map[string]struct{})
			s.local[sessionId] = viewers
		}
		if enter {
			viewers[connId] = struct{}{}
		} else {
			delete(viewers, connId)
		}
		count := len(viewers)
		if count == 0 {
			delete(s.local, sessionId)
		}
		return count, nil
	}

	key := viewersKey(sessionId)
	pipe := s.rdb.TxPipeline()
	if enter {
		pipe.SAdd(ctx, key, connId)
	} else {
		pipe.SRem(ctx, key, connId)
	}
	card := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

func (s *presenceService) store(ctx context.Context, sessionId uuid.UUID, count int, err error) int {
	if err != nil {
		s.logger.Warn("PRESENCE", "Failed to update viewer set", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return 0
	}

	if err := s.uowFactory.NewUnitOfWork(ctx).LiveSessionRepository().SetViewerCount(ctx, sessionId, count); err != nil {
		s.logger.Warn("PRESENCE", "Failed to store viewer count", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
	}
	return count
}
