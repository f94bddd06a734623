package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type NotificationFilters struct {
	UnreadOnly bool `json:"unread_only"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
}

// ===== PROGRESS =====

// ProgressRepository reads the course catalog and writes completion records.
type ProgressRepository interface {
	// GetLevelCompletion evaluates the completeness predicate for one tier in
	// a single aggregate query.
	GetLevelCompletion(ctx context.Context, tx *gorm.DB, userID string, level models.Level) (*models.LevelCompletion, error)

	GetCourse(ctx context.Context, tx *gorm.DB, courseID string) (*models.Course, error)
	LessonBelongsToCourse(ctx context.Context, tx *gorm.DB, courseID, lessonID string) (bool, error)

	// AddCompletedLesson set-unions lessonID into the record, creating it if needed.
	AddCompletedLesson(ctx context.Context, tx *gorm.DB, userID, courseID, lessonID string) error
}

// ===== ROOMS =====

type RoomRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Room, error)

	// FindGlobalByName returns the oldest global room with the name.
	FindGlobalByName(ctx context.Context, tx *gorm.DB, name string) (*models.Room, error)

	// CreateGlobalIfAbsent inserts a global room unless one with the name
	// already exists and returns the canonical (oldest) row.
	CreateGlobalIfAbsent(ctx context.Context, tx *gorm.DB, name string) (*models.Room, error)

	// ListDirectFor returns direct rooms the user participates in, most recently active first.
	ListDirectFor(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Room, error)

	Create(ctx context.Context, tx *gorm.DB, room *models.Room) error
	TouchActivity(ctx context.Context, tx *gorm.DB, id string, at time.Time) error
}

// ===== MESSAGES =====

type MessageRepository interface {
	Create(ctx context.Context, tx *gorm.DB, message *models.Message) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Message, error)

	// ListByRoom returns a page newest first.
	ListByRoom(ctx context.Context, tx *gorm.DB, roomID string, limit, offset int) ([]*models.Message, error)

	// ListAllByRoom returns the full history oldest first.
	ListAllByRoom(ctx context.Context, tx *gorm.DB, roomID string) ([]*models.Message, error)

	// LatestInRoom returns ErrNotFound for an empty room.
	LatestInRoom(ctx context.Context, tx *gorm.DB, roomID string) (*models.Message, error)

	// CountUnread counts messages not sent by userID and not seen by them.
	CountUnread(ctx context.Context, tx *gorm.DB, roomID, userID string) (int64, error)

	// ToggleReaction atomically adds or removes the (user, emoji) pair and
	// returns the resulting reactions.
	ToggleReaction(ctx context.Context, tx *gorm.DB, messageID string, reaction models.Reaction) ([]models.Reaction, error)

	// MarkRoomSeen appends userID to seenBy of every message in the room
	// that lacks it and returns the number of messages updated.
	MarkRoomSeen(ctx context.Context, tx *gorm.DB, roomID, userID string) (int64, error)

	Delete(ctx context.Context, tx *gorm.DB, id string) error
}

// ===== NOTIFICATIONS =====

// NotificationRecipient scopes notification reads: records addressed to the
// user, or to the user's role (or all) without a user id.
type NotificationRecipient struct {
	UserID string
	Role   models.UserRole
}

type NotificationRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*models.Notification) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Notification, error)
	ListFor(ctx context.Context, tx *gorm.DB, recipient NotificationRecipient, filters NotificationFilters) ([]*models.Notification, int64, error)
	CountUnreadFor(ctx context.Context, tx *gorm.DB, recipient NotificationRecipient) (int64, error)
	MarkRead(ctx context.Context, tx *gorm.DB, id string, recipient NotificationRecipient) (bool, error)
	MarkAllRead(ctx context.Context, tx *gorm.DB, recipient NotificationRecipient) (int64, error)
}
