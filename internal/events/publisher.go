package events

import (
	"context"
	"encoding/json"
	"time"

	"live-relay-be/internal/dto"
	"live-relay-be/internal/entity"
	"live-relay-be/internal/pkg/logger"
	pkgEvents "live-relay-be/pkg/events"
	pktNats "live-relay-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// In-process feed topics. Every committed session change and chat message
// is published here after the transaction commits.
const (
	TopicSessionChanged = "live.session_changed"
	TopicChatMessage    = "live.chat_message"
)

type SessionChangedMessage struct {
	Event   string              `json:"event"`
	UserId  string              `json:"user_id,omitempty"`
	Session dto.SessionResponse `json:"session"`
}

// Publisher is fire-and-forget: failures are logged, never returned, since
// the state change they describe has already committed.
type Publisher interface {
	SessionChanged(ctx context.Context, event string, session *entity.Session, userId string)
	ChatMessageSent(ctx context.Context, msg *entity.LiveChatMessage)
}

// LivePublisher writes to the watermill feed and mirrors domain events to
// JetStream. Either sink may be nil.
type LivePublisher struct {
	feed   message.Publisher
	bus    *pktNats.Publisher
	logger logger.ILogger
}

func NewLivePublisher(feed message.Publisher, bus *pktNats.Publisher, logger logger.ILogger) *LivePublisher {
	return &LivePublisher{
		feed:   feed,
		bus:    bus,
		logger: logger,
	}
}

func (p *LivePublisher) SessionChanged(ctx context.Context, event string, session *entity.Session, userId string) {
	p.publishFeed(TopicSessionChanged, SessionChangedMessage{
		Event:   event,
		UserId:  userId,
		Session: dto.NewSessionResponse(session),
	})

	data := map[string]interface{}{
		"session_id":            session.Id.String(),
		"session_type":          string(session.SessionType),
		"active_broadcaster_id": session.ActiveBroadcasterId(),
		"member_count":          session.MemberCount,
		"version":               session.Version,
		"entity_type":           "live_session",
		"entity_id":             session.Id.String(),
	}
	if userId != "" {
		data["user_id"] = userId
	}
	p.publishBus(ctx, event, data)
}

func (p *LivePublisher) ChatMessageSent(ctx context.Context, msg *entity.LiveChatMessage) {
	p.publishFeed(TopicChatMessage, dto.NewChatMessageResponse(msg))

	data := map[string]interface{}{
		"session_id":  msg.SessionId.String(),
		"message_id":  msg.Id.String(),
		"user_id":     msg.UserId,
		"is_donation": msg.IsDonation,
		"entity_type": "live_chat_message",
		"entity_id":   msg.Id.String(),
	}
	if msg.DonationAmount != nil {
		data["donation_amount"] = *msg.DonationAmount
	}
	p.publishBus(ctx, pkgEvents.ChatMessageSent, data)
}

func (p *LivePublisher) publishFeed(topic string, payload interface{}) {
	if p.feed == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("LIVE_EVENTS", "Failed to marshal feed payload", map[string]interface{}{"topic": topic, "error": err.Error()})
		return
	}

	if err := p.feed.Publish(topic, message.NewMessage(watermill.NewUUID(), body)); err != nil {
		p.logger.Error("LIVE_EVENTS", "Failed to publish to feed", map[string]interface{}{"topic": topic, "error": err.Error()})
	}
}

func (p *LivePublisher) publishBus(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.bus == nil {
		return
	}

	evt := pkgEvents.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Error("LIVE_EVENTS", "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}
