package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// LocalTransport is an in-process transport backed by a watermill GoChannel.
// It serves single-instance deployments and tests.
type LocalTransport struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
}

func NewLocalTransport(logger *slog.Logger) *LocalTransport {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: subscriptionBuffer},
		watermill.NewSlogLogger(logger),
	)
	return &LocalTransport{pubSub: pubSub, logger: logger}
}

func (t *LocalTransport) Publish(_ context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := t.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (t *LocalTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	messages, err := t.pubSub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &localSubscription{
		out:    make(chan []byte, subscriptionBuffer),
		cancel: cancel,
	}
	go sub.forward(subCtx, messages, t.logger, topic)

	return sub, nil
}

func (t *LocalTransport) Close() error {
	return t.pubSub.Close()
}

type localSubscription struct {
	out    chan []byte
	cancel context.CancelFunc
	once   sync.Once
}

// forward acks every message, including dropped ones, so a slow client
// never stalls the publisher.
func (s *localSubscription) forward(ctx context.Context, in <-chan *message.Message, logger *slog.Logger, topic string) {
	defer close(s.out)

	for msg := range in {
		select {
		case s.out <- msg.Payload:
		case <-ctx.Done():
		default:
			logger.Warn("Dropping push event for slow subscriber", "topic", topic)
		}
		msg.Ack()
	}
}

func (s *localSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *localSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
