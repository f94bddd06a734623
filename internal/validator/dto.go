package validator

import (
	"github.com/SAP-F-2025/community-service/internal/models"
)

// PostMessageRequest is the body of POST /rooms/:id/messages
type PostMessageRequest struct {
	Type     models.MessageType `json:"type" validate:"required,message_type"`
	Content  string             `json:"content" validate:"max=4000"`
	FileMeta *models.FileMeta   `json:"fileMeta" validate:"omitempty"`
}

// ReactionRequest is the body of POST /messages/:id/reaction
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,emoji"`
}

// CreateDirectRoomRequest is the body of POST /rooms/direct
type CreateDirectRoomRequest struct {
	Name           string   `json:"name" validate:"omitempty,max=100"`
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,max=50,dive,required,max=255"`
}

// NotificationTarget addresses exactly one of a user, a role or a room.
type NotificationTarget struct {
	UserID *string            `json:"userId" validate:"omitempty,max=255"`
	Role   *models.RoleTarget `json:"role" validate:"omitempty,role_target"`
	RoomID *string            `json:"roomId" validate:"omitempty,uuid"`
}

// NotifyRequest is the body of POST /notifications
type NotifyRequest struct {
	Target    NotificationTarget      `json:"target"`
	Type      models.NotificationType `json:"type" validate:"required,notification_type"`
	Title     string                  `json:"title" validate:"required,max=200"`
	Message   string                  `json:"message" validate:"max=2000"`
	RelatedID *string                 `json:"relatedId" validate:"omitempty,max=255"`
	Metadata  map[string]interface{}  `json:"metadata"`
}

// LessonCompletionRequest is the body of POST /internal/lesson-completions
type LessonCompletionRequest struct {
	UserID   string `json:"user_id" validate:"required,max=255"`
	CourseID string `json:"course_id" validate:"required,max=36"`
	LessonID string `json:"lesson_id" validate:"required,max=36"`
}
