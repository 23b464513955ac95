package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// StreamName holds durable domain events on events.>.
	StreamName = "EVENTS"

	broadcastSubjectPrefix = "live.broadcast."
)

// BroadcastSubject is the core (non-persisted) subject carrying a
// session's utterance buffer.
func BroadcastSubject(sessionId string) string {
	return broadcastSubjectPrefix + sessionId
}

func connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
