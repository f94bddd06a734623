package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "community-service"
	EventVersion = "1.0"
)

type EventType string

const (
	EventLevelAdvanced       EventType = "community.level_advanced"
	EventNotificationCreated EventType = "community.notification_created"
)

// Event is the envelope every domain event is published in
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type LevelAdvancedData struct {
	UserID     string    `json:"user_id"`
	FromLevel  string    `json:"from_level"`
	ToLevel    string    `json:"to_level"`
	AdvancedAt time.Time `json:"advanced_at"`
}

type NotificationCreatedData struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Recipients int    `json:"recipients"`
	RelatedID  string `json:"related_id,omitempty"`
}
