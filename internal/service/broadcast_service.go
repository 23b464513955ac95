package service

import (
	"context"
	"encoding/json"
	"fmt"

	"live-relay-be/internal/entity"
	"live-relay-be/internal/errs"
	liveEvents "live-relay-be/internal/events"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/internal/repository/memory"
	"live-relay-be/pkg/relay"

	"github.com/google/uuid"
)

// BroadcasterRoom disconnects ingress sockets whose user lost the slot.
type BroadcasterRoom interface {
	DropBroadcasters(sessionId uuid.UUID, holder string) int
}

type IBroadcastService interface {
	// Authorize checks that userId currently holds the session's slot.
	Authorize(ctx context.Context, sessionId uuid.UUID, userId string) (*entity.Session, error)
	// Publish forwards one raw frame from userId to every listener. Frames
	// from anyone but the current holder are rejected.
	Publish(ctx context.Context, sessionId uuid.UUID, userId string, data []byte) error
	// TouchActivity records broadcaster activity when userId holds the
	// slot. Anyone else gets a logged no-op.
	TouchActivity(ctx context.Context, sessionId uuid.UUID, userId string) bool
	// SlotChanged is called with the new holder ("" for none) after the
	// slot changes hands or the session closes.
	SlotChanged(sessionId uuid.UUID, holder string)
	// Source is what listener relays subscribe to.
	Source() relay.Source
}

type broadcastService struct {
	bus      liveEvents.BroadcastBus
	sessions ISessionService
	throttle *memory.ActivityThrottle
	holders  *memory.HolderCache
	room     BroadcasterRoom
	logger   logger.ILogger
}

// NewBroadcastService wires broadcaster ingress. room may be nil.
func NewBroadcastService(
	bus liveEvents.BroadcastBus,
	sessions ISessionService,
	throttle *memory.ActivityThrottle,
	holders *memory.HolderCache,
	room BroadcasterRoom,
	logger logger.ILogger,
) IBroadcastService {
	return &broadcastService{
		bus:      bus,
		sessions: sessions,
		throttle: throttle,
		holders:  holders,
		room:     room,
		logger:   logger,
	}
}

func currentHolder(session *entity.Session) string {
	if !session.IsActive {
		return ""
	}
	if id := session.ActiveBroadcasterId(); id != nil {
		return *id
	}
	return ""
}

func (s *broadcastService) Authorize(ctx context.Context, sessionId uuid.UUID, userId string) (*entity.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	s.holders.Set(sessionId.String(), currentHolder(session))

	if !session.IsActive {
		return nil, errs.ErrInactive
	}
	if !session.Broadcaster.IsHeldBy(userId) {
		return nil, errs.ErrNotAuthorized
	}
	return session, nil
}

// holds answers from the holder cache, falling back to the store.
func (s *broadcastService) holds(ctx context.Context, sessionId uuid.UUID, userId string) (bool, error) {
	key := sessionId.String()
	holder, ok := s.holders.Get(key)
	if !ok {
		session, err := s.sessions.GetSession(ctx, sessionId)
		if err != nil {
			return false, err
		}
		holder = currentHolder(session)
		s.holders.Set(key, holder)
	}
	return holder != "" && holder == userId, nil
}

func (s *broadcastService) Publish(ctx context.Context, sessionId uuid.UUID, userId string, data []byte) error {
	holds, err := s.holds(ctx, sessionId, userId)
	if err != nil {
		return err
	}
	if !holds {
		s.logger.Warn("BROADCAST", "Rejected frame from non-holder", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    userId,
		})
		return errs.ErrNotAuthorized
	}

	var msg relay.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid broadcast message: %w", err)
	}
	if msg.Type != relay.MessageTranslation && msg.Type != relay.MessageReady {
		return fmt.Errorf("unknown broadcast message type %q", msg.Type)
	}

	normalized, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.bus.Publish(sessionId.String(), normalized); err != nil {
		return err
	}

	if s.throttle.Allow(sessionId.String()) {
		if err := s.sessions.TouchActivity(ctx, sessionId); err != nil {
			s.logger.Warn("BROADCAST", "Failed to touch activity", map[string]interface{}{
				"session_id": sessionId.String(),
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (s *broadcastService) TouchActivity(ctx context.Context, sessionId uuid.UUID, userId string) bool {
	if _, err := s.Authorize(ctx, sessionId, userId); err != nil {
		s.logger.Debug("BROADCAST", "Ignoring activity touch from non-holder", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    userId,
			"reason":     err.Error(),
		})
		return false
	}
	if err := s.sessions.TouchActivity(ctx, sessionId); err != nil {
		s.logger.Warn("BROADCAST", "Failed to touch activity", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return false
	}
	return true
}

// SlotChanged drops the cached holder so the next frame re-reads the store,
// then disconnects local sockets of users who no longer hold the slot.
func (s *broadcastService) SlotChanged(sessionId uuid.UUID, holder string) {
	s.holders.Forget(sessionId.String())
	if s.room != nil {
		s.room.DropBroadcasters(sessionId, holder)
	}
}

func (s *broadcastService) Source() relay.Source {
	return s.bus
}
