package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/community-service/internal/realtime"
)

// Push event names
const (
	EventNewMessage      = "new_message"
	EventReactionUpdated = "reaction_updated"
	EventMessageDeleted  = "message_deleted"
	EventMessagesSeen    = "messages_seen"
	EventNotification    = "notification"
	EventRoomCreated     = "room_created"
)

const publishTimeout = 5 * time.Second

// PushEvent is the frame delivered to topic subscribers
type PushEvent struct {
	Event  string      `json:"event"`
	RoomID string      `json:"roomId,omitempty"`
	Data   interface{} `json:"data"`
	SentAt time.Time   `json:"sentAt"`
}

// Broadcaster publishes events after the store acknowledged a write. It
// never reports failures to the caller.
type Broadcaster interface {
	Publish(ctx context.Context, event, roomID string, payload interface{})
	PublishToUser(ctx context.Context, event, userID string, payload interface{})
	Transport() realtime.Transport
}

type realtimeBroadcaster struct {
	transport realtime.Transport
	logger    *slog.Logger
}

func NewBroadcaster(transport realtime.Transport, logger *slog.Logger) Broadcaster {
	return &realtimeBroadcaster{transport: transport, logger: logger}
}

func (b *realtimeBroadcaster) Transport() realtime.Transport {
	return b.transport
}

// Publish delivers to room:<roomID>, and to the legacy spelling of the id
// when it differs.
func (b *realtimeBroadcaster) Publish(ctx context.Context, event, roomID string, payload interface{}) {
	frame := PushEvent{Event: event, RoomID: roomID, Data: payload, SentAt: time.Now().UTC()}

	topics := []string{realtime.RoomTopic(roomID)}
	if legacy := LegacyRoomID(roomID); legacy != "" && legacy != roomID {
		topics = append(topics, realtime.RoomTopic(legacy))
	}

	for _, topic := range topics {
		b.send(ctx, topic, frame)
	}
}

func (b *realtimeBroadcaster) PublishToUser(ctx context.Context, event, userID string, payload interface{}) {
	frame := PushEvent{Event: event, Data: payload, SentAt: time.Now().UTC()}
	b.send(ctx, realtime.UserTopic(userID), frame)
}

func (b *realtimeBroadcaster) send(ctx context.Context, topic string, frame PushEvent) {
	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("Failed to encode push event", "event", frame.Event, "topic", topic, "error", err)
		return
	}

	// The write is already committed; a disconnecting caller must not
	// cancel the push.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := b.transport.Publish(pubCtx, topic, data); err != nil {
		b.logger.Warn("Push delivery failed", "event", frame.Event, "topic", topic, "error", err)
	}
}

// LegacyRoomID returns the compact 32-hex spelling of a canonical room id,
// or the canonical spelling of a compact one. It returns "" for ids that
// are not uuids.
func LegacyRoomID(roomID string) string {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return ""
	}
	if strings.Contains(roomID, "-") {
		return strings.ReplaceAll(id.String(), "-", "")
	}
	return id.String()
}

// canonicalRoomID normalises any accepted spelling of a room id.
func canonicalRoomID(roomID string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(roomID))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
