package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageAudio MessageType = "audio"
	MessageFile  MessageType = "file"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile:
		return true
	}
	return false
}

// Reaction is one (user, emoji) pair on a message.
type Reaction struct {
	Emoji    string `json:"emoji"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// FileMeta describes media uploaded out of band.
type FileMeta struct {
	URL  string `json:"url" validate:"required,url"`
	Name string `json:"name" validate:"required,max=255"`
	Size int64  `json:"size" validate:"min=0"`
}

type Message struct {
	ID         string                        `json:"id" gorm:"primaryKey;size:36"`
	RoomID     string                        `json:"roomId" gorm:"size:36;not null;index:idx_messages_room_created,priority:1"`
	SenderID   string                        `json:"senderId" gorm:"size:255;not null;index"`
	SenderName string                        `json:"senderName" gorm:"size:100"`
	Type       MessageType                   `json:"type" gorm:"size:20;not null;default:text"`
	Content    string                        `json:"content" gorm:"type:text"`
	FileURL    *string                       `json:"fileUrl,omitempty" gorm:"size:1000"`
	FileName   *string                       `json:"fileName,omitempty" gorm:"size:255"`
	FileSize   *int64                        `json:"fileSize,omitempty"`
	Reactions  datatypes.JSONSlice[Reaction] `json:"reactions" gorm:"type:jsonb;not null;default:'[]'"`
	SeenBy     datatypes.JSONSlice[string]   `json:"seenBy" gorm:"type:jsonb;not null;default:'[]'"`
	Delivered  bool                          `json:"delivered" gorm:"not null;default:false"`
	CreatedAt  time.Time                     `json:"createdAt" gorm:"not null;index:idx_messages_room_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

// NewMessageID returns a UUIDv7. Its text form sorts in creation order, so
// ordering by (created_at, id) breaks timestamp ties by insertion order.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (m *Message) SeenByUser(userID string) bool {
	return slices.Contains([]string(m.SeenBy), userID)
}

// HasReaction reports whether the pair is present.
func (m *Message) HasReaction(userID, emoji string) bool {
	return slices.ContainsFunc([]Reaction(m.Reactions), func(r Reaction) bool {
		return r.UserID == userID && r.Emoji == emoji
	})
}

// ToggleReaction removes the pair when present, otherwise appends it.
func ToggleReaction(reactions []Reaction, r Reaction) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	removed := false
	for _, existing := range reactions {
		if existing.UserID == r.UserID && existing.Emoji == r.Emoji {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if !removed {
		out = append(out, r)
	}
	return out
}

// MessagePage is a page of messages in display (oldest-first) order.
type MessagePage struct {
	Messages []*Message `json:"messages"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	HasMore  bool       `json:"hasMore"`
}
