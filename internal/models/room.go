package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

type RoomType string

const (
	RoomGlobal RoomType = "global"
	RoomDirect RoomType = "direct"
)

// GlobalRoomNames are the canonical catalog-wide rooms, one per tier.
var GlobalRoomNames = []string{"Beginner", "Intermediate", "Advanced"}

type Room struct {
	ID             string                      `json:"id" gorm:"primaryKey;size:36"`
	Name           string                      `json:"name" gorm:"size:100;not null;index"`
	Type           RoomType                    `json:"type" gorm:"size:20;not null;index"`
	Participants   datatypes.JSONSlice[string] `json:"participants" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedBy      *string                     `json:"created_by,omitempty" gorm:"size:255"`
	LastActivityAt *time.Time                  `json:"last_activity_at" gorm:"index"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

func (r *Room) IsGlobal() bool {
	return r.Type == RoomGlobal
}

func (r *Room) HasParticipant(userID string) bool {
	return slices.Contains([]string(r.Participants), userID)
}

// RoomSummary is one entry of a room listing.
type RoomSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           RoomType   `json:"type"`
	IsLocked       bool       `json:"isLocked"`
	LastMessage    *Message   `json:"lastMessage"`
	UnreadCount    int64      `json:"unreadCount"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}
