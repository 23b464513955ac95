package events

import (
	"context"
	"fmt"

	pktNats "live-relay-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// BroadcastBus carries a session's broadcast buffers from the broadcaster
// connection to every listener relay. Nothing on it is persisted.
type BroadcastBus interface {
	Publish(sessionId string, data []byte) error
	Subscribe(sessionId string, handler func(data []byte)) (unsubscribe func() error, err error)
}

// NatsBroadcastBus uses core NATS so listeners on any instance receive
// the stream.
type NatsBroadcastBus struct {
	publisher  *pktNats.Publisher
	subscriber *pktNats.Subscriber
}

func NewNatsBroadcastBus(publisher *pktNats.Publisher, subscriber *pktNats.Subscriber) *NatsBroadcastBus {
	return &NatsBroadcastBus{publisher: publisher, subscriber: subscriber}
}

func (b *NatsBroadcastBus) Publish(sessionId string, data []byte) error {
	return b.publisher.PublishBroadcast(sessionId, data)
}

func (b *NatsBroadcastBus) Subscribe(sessionId string, handler func(data []byte)) (func() error, error) {
	return b.subscriber.SubscribeBroadcast(sessionId, handler)
}

// ChannelBroadcastBus keeps the stream inside one process. Used when no
// NATS server is configured.
type ChannelBroadcastBus struct {
	pubSub *gochannel.GoChannel
}

func NewChannelBroadcastBus(logger watermill.LoggerAdapter) *ChannelBroadcastBus {
	return &ChannelBroadcastBus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

func (b *ChannelBroadcastBus) Publish(sessionId string, data []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubSub.Publish(pktNats.BroadcastSubject(sessionId), msg); err != nil {
		return fmt.Errorf("failed to publish broadcast for session %s: %w", sessionId, err)
	}
	return nil
}

func (b *ChannelBroadcastBus) Subscribe(sessionId string, handler func(data []byte)) (func() error, error) {
	ctx, cancel := context.WithCancel(context.Background())
	messages, err := b.pubSub.Subscribe(ctx, pktNats.BroadcastSubject(sessionId))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionId, err)
	}

	go func() {
		for msg := range messages {
			handler(msg.Payload)
			msg.Ack()
		}
	}()

	return func() error {
		cancel()
		return nil
	}, nil
}

func (b *ChannelBroadcastBus) Close() error {
	return b.pubSub.Close()
}
