package services

import (
	"context"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type PostMessageRequest = validator.PostMessageRequest
type ReactionRequest = validator.ReactionRequest
type CreateDirectRoomRequest = validator.CreateDirectRoomRequest
type NotifyRequest = validator.NotifyRequest
type NotificationTarget = validator.NotificationTarget
type LessonCompletionRequest = validator.LessonCompletionRequest

// AdvancementResult is the outcome of one tier evaluation.
type AdvancementResult struct {
	UserID   string       `json:"userId"`
	From     models.Level `json:"from"`
	To       models.Level `json:"to"`
	Advanced bool         `json:"advanced"`
}

// Transcript is a rendered room history.
type Transcript struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

// ProgressionService owns the learner tier state machine.
type ProgressionService interface {
	ComputeEffectiveLevel(principal *models.Principal) models.Level

	// EvaluateAdvancement schedules an evaluation and returns immediately.
	EvaluateAdvancement(learnerID string)
	EvaluateAdvancementSync(ctx context.Context, learnerID string) (*AdvancementResult, error)

	RecordLessonCompletion(ctx context.Context, learnerID, courseID, lessonID string) error
	GetProgress(ctx context.Context, principal *models.Principal) (*models.ProgressResponse, error)

	// Wait blocks until scheduled evaluations finish.
	Wait()
}

// RoomService lists and resolves rooms.
type RoomService interface {
	ListRoomsFor(ctx context.Context, principal *models.Principal) ([]*models.RoomSummary, error)
	EnsureGlobalRooms(ctx context.Context) ([]*models.Room, error)
	GetRoom(ctx context.Context, roomID string, principal *models.Principal) (*models.Room, error)
	CreateDirectRoom(ctx context.Context, principal *models.Principal, req *CreateDirectRoomRequest) (*models.Room, error)
}

// MessageService persists and serves room messages.
type MessageService interface {
	ListMessages(ctx context.Context, roomID string, principal *models.Principal, page, pageSize int) (*models.MessagePage, error)
	PostMessage(ctx context.Context, roomID string, principal *models.Principal, req *PostMessageRequest) (*models.Message, error)
	ToggleReaction(ctx context.Context, messageID string, principal *models.Principal, emoji string) ([]models.Reaction, error)
	DeleteMessage(ctx context.Context, messageID string, principal *models.Principal) error
	MarkRoomSeen(ctx context.Context, roomID string, principal *models.Principal) (int64, error)
	ExportTranscript(ctx context.Context, roomID string, principal *models.Principal) (*Transcript, error)
}

// NotificationService persists notifications and pushes them to recipients.
type NotificationService interface {
	Notify(ctx context.Context, req *NotifyRequest) (int, error)
	List(ctx context.Context, principal *models.Principal, unreadOnly bool, page, pageSize int) (*models.NotificationList, error)
	MarkRead(ctx context.Context, id string, principal *models.Principal) error
	MarkAllRead(ctx context.Context, principal *models.Principal) (int64, error)
}

// IdentityService turns a verified identity into a principal.
type IdentityService interface {
	ResolvePrincipal(ctx context.Context, identity *models.Identity) (*models.Principal, error)
	CompleteOnboarding(ctx context.Context, principal *models.Principal) (*models.Principal, error)
}

// ServiceManager manages all services
type ServiceManager interface {
	Progression() ProgressionService
	Room() RoomService
	Message() MessageService
	Notification() NotificationService
	Identity() IdentityService
	Broadcaster() Broadcaster

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
