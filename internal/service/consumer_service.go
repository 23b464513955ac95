package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"live-relay-be/internal/dto"
	liveEvents "live-relay-be/internal/events"
	"live-relay-be/internal/pkg/logger"
	pkgEvents "live-relay-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// versionTTL bounds how long a quiet session's last pushed version is kept.
const versionTTL = time.Hour

// RoomPublisher delivers a frame to everyone watching a session.
type RoomPublisher interface {
	Publish(sessionId uuid.UUID, frame interface{})
}

// SlotWatcher is told the new holder ("" for none) whenever the
// broadcaster slot changes hands or the session closes.
type SlotWatcher interface {
	SlotChanged(sessionId uuid.UUID, holder string)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService turns the committed-change feed into websocket frames.
type consumerService struct {
	subscriber message.Subscriber
	sessions   ISessionService
	rooms      RoomPublisher
	slots      SlotWatcher
	logger     logger.ILogger

	mu       sync.Mutex
	versions *cache.Cache
}

func NewConsumerService(
	subscriber message.Subscriber,
	sessions ISessionService,
	rooms RoomPublisher,
	slots SlotWatcher,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		sessions:   sessions,
		rooms:      rooms,
		slots:      slots,
		logger:     logger,
		versions:   cache.New(versionTTL, 10*time.Minute),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	sessionMessages, err := cs.subscriber.Subscribe(ctx, liveEvents.TopicSessionChanged)
	if err != nil {
		return err
	}
	chatMessages, err := cs.subscriber.Subscribe(ctx, liveEvents.TopicChatMessage)
	if err != nil {
		return err
	}

	go func() {
		for msg := range sessionMessages {
			cs.processSessionChanged(ctx, msg)
		}
	}()
	go func() {
		for msg := range chatMessages {
			cs.processChatMessage(msg)
		}
	}()

	return nil
}

// fresh reports whether version is not older than anything already pushed
// for the session. Publishing happens after commit, so two commits can
// reach the feed out of order. One commit may carry several events, all
// with the same version.
func (cs *consumerService) fresh(sessionId uuid.UUID, version int64) bool {
	key := sessionId.String()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if last, ok := cs.versions.Get(key); ok && version < last.(int64) {
		return false
	}
	cs.versions.Set(key, version, cache.DefaultExpiration)
	return true
}

func (cs *consumerService) processSessionChanged(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload liveEvents.SessionChangedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("FEED", "Failed to unmarshal session change", map[string]interface{}{"error": err.Error()})
		return
	}

	sessionId := payload.Session.Id
	if !cs.fresh(sessionId, payload.Session.Version) {
		cs.logger.Debug("FEED", "Dropping stale session snapshot", map[string]interface{}{
			"session_id": sessionId.String(),
			"version":    payload.Session.Version,
		})
		return
	}

	cs.rooms.Publish(sessionId, dto.SessionFrame{
		Type:    dto.FrameSession,
		Event:   payload.Event,
		Session: payload.Session,
	})

	if cs.slots != nil && slotChanging(payload.Event) {
		holder := ""
		if payload.Session.IsActive && payload.Session.ActiveBroadcasterId != nil {
			holder = *payload.Session.ActiveBroadcasterId
		}
		cs.slots.SlotChanged(sessionId, holder)
	}

	if !rosterChanging(payload.Event) {
		return
	}

	members, err := cs.sessions.ListMembers(ctx, sessionId)
	if err != nil {
		cs.logger.Warn("FEED", "Failed to load roster", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return
	}

	frame := dto.RosterFrame{
		Type:      dto.FrameRoster,
		SessionId: sessionId,
		Members:   make([]dto.MemberResponse, len(members)),
	}
	for i, m := range members {
		frame.Members[i] = dto.NewMemberResponse(m)
	}
	cs.rooms.Publish(sessionId, frame)
}

func rosterChanging(event string) bool {
	switch event {
	case pkgEvents.MemberJoined, pkgEvents.MemberLeft,
		pkgEvents.BroadcastStarted, pkgEvents.BroadcastEnded,
		pkgEvents.BroadcasterReconciled, pkgEvents.SessionClosed:
		return true
	}
	return false
}

func slotChanging(event string) bool {
	switch event {
	case pkgEvents.BroadcastStarted, pkgEvents.BroadcastEnded,
		pkgEvents.BroadcasterReconciled, pkgEvents.SessionClosed:
		return true
	}
	return false
}

func (cs *consumerService) processChatMessage(msg *message.Message) {
	defer msg.Ack()

	var payload dto.ChatMessageResponse
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("FEED", "Failed to unmarshal chat message", map[string]interface{}{"error": err.Error()})
		return
	}

	cs.rooms.Publish(payload.SessionId, dto.ChatFrame{
		Type:    dto.FrameChat,
		Message: payload,
	})
}
