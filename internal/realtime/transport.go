// Package realtime carries push events between server instances and the
// clients subscribed to a topic.
package realtime

import "context"

// Subscription delivers payloads published on one topic until closed.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Transport is a topic-based publish/subscribe channel. Delivery is best
// effort; subscribers only see messages published after they subscribed.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

func RoomTopic(roomID string) string {
	return "room:" + roomID
}

func UserTopic(userID string) string {
	return "user:" + userID
}

const subscriptionBuffer = 64
