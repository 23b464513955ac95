package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "MEMBER_JOINED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Live session event codes, published on events.<CODE>.
const (
	SessionCreated        = "SESSION_CREATED"
	SessionClosed         = "SESSION_CLOSED"
	ChannelCreated        = "CHANNEL_CREATED"
	ChannelReopened       = "CHANNEL_REOPENED"
	MemberJoined          = "MEMBER_JOINED"
	MemberLeft            = "MEMBER_LEFT"
	BroadcastStarted      = "BROADCAST_STARTED"
	BroadcastEnded        = "BROADCAST_ENDED"
	BroadcasterReconciled = "BROADCASTER_RECONCILED"
	ChatMessageSent       = "CHAT_MESSAGE_SENT"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
