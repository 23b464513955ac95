package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber listens to core broadcast subjects. Each listener gets its
// own subscription and unsubscribes when it goes away.
type Subscriber struct {
	nc *nats.Conn
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc}, nil
}

// SubscribeBroadcast delivers every frame published for sessionId, in
// publish order, until the returned function is called.
func (s *Subscriber) SubscribeBroadcast(sessionId string, handler func(data []byte)) (func() error, error) {
	sub, err := s.nc.Subscribe(BroadcastSubject(sessionId), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionId, err)
	}
	return sub.Unsubscribe, nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
