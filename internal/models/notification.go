package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationNewMessage     NotificationType = "new_message"
	NotificationLevelUp        NotificationType = "level_up"
	NotificationTaskSubmission NotificationType = "task_submission"
	NotificationReminder       NotificationType = "reminder"
	NotificationAnnouncement   NotificationType = "announcement"
	NotificationSystem         NotificationType = "system"
)

// RoleTarget is the audience a notification was addressed to.
type RoleTarget string

const (
	TargetStudent    RoleTarget = "student"
	TargetInstructor RoleTarget = "instructor"
	TargetAdmin      RoleTarget = "admin"
	TargetSuperAdmin RoleTarget = "superadmin"
	TargetAll        RoleTarget = "all"
)

func (t RoleTarget) IsValid() bool {
	switch t {
	case TargetStudent, TargetInstructor, TargetAdmin, TargetSuperAdmin, TargetAll:
		return true
	}
	return false
}

// Matches reports whether a principal with role belongs to the audience.
func (t RoleTarget) Matches(role UserRole) bool {
	return t == TargetAll || string(t) == string(role)
}

type Notification struct {
	ID         string            `json:"id" gorm:"primaryKey;size:36"`
	Type       NotificationType  `json:"type" gorm:"size:50;not null;index"`
	Title      string            `json:"title" gorm:"size:200;not null"`
	Message    string            `json:"message" gorm:"type:text"`
	RoleTarget RoleTarget        `json:"roleTarget" gorm:"size:20;not null;default:all;index"`
	UserID     *string           `json:"userId,omitempty" gorm:"size:255;index:idx_notifications_user_created,priority:1"`
	RoomID     *string           `json:"roomId,omitempty" gorm:"size:36"`
	RelatedID  *string           `json:"relatedId,omitempty" gorm:"size:255"`
	Read       bool              `json:"read" gorm:"not null;default:false;index"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"createdAt" gorm:"index:idx_notifications_user_created,priority:2"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationList is a page of a principal's notifications.
type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Unread        int64           `json:"unread"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
}
