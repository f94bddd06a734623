package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisTransport fans events out through Redis Pub/Sub so every server
// instance sees every event.
type RedisTransport struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisTransport(client *redis.Client, logger *slog.Logger) *RedisTransport {
	return &RedisTransport{client: client, logger: logger}
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns once Redis confirmed the subscription.
func (t *RedisTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := t.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan []byte, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	go sub.forward(ctx, t.logger, topic)

	return sub, nil
}

// Close is a no-op; the redis client is owned by the caller.
func (t *RedisTransport) Close() error {
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) forward(ctx context.Context, logger *slog.Logger, topic string) {
	defer close(s.out)

	in := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			default:
				logger.Warn("Dropping push event for slow subscriber", "topic", topic)
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
