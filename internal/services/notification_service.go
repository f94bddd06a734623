package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/events"
	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

type notificationService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	broadcaster Broadcaster
	events      events.EventPublisher
}

func NewNotificationService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, broadcaster Broadcaster, publisher events.EventPublisher) NotificationService {
	return &notificationService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		broadcaster: broadcaster,
		events:      publisher,
	}
}

// ===== FAN-OUT =====

// Notify resolves the target to recipients, persists one record each and
// then pushes to every recipient's private topic.
func (s *notificationService) Notify(ctx context.Context, req *NotifyRequest) (recipientCount int, err error) {
	ctx, span := startSpan(ctx, "NotificationService.Notify", attribute.String("notification.type", string(req.Type)))
	defer func() { endSpan(span, err) }()

	if err := s.validator.Validate(req); err != nil {
		return 0, fmt.Errorf("invalid notification: %w", err)
	}

	recipients, roleTarget, roomID, err := s.resolveRecipients(ctx, req.Target)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Sending notification",
		"type", req.Type,
		"role_target", roleTarget,
		"recipients", len(recipients))

	if len(recipients) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	notifications := make([]*models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, &models.Notification{
			ID:         uuid.NewString(),
			Type:       req.Type,
			Title:      req.Title,
			Message:    req.Message,
			RoleTarget: roleTarget,
			UserID:     &userID,
			RoomID:     roomID,
			RelatedID:  req.RelatedID,
			Metadata:   datatypes.JSONMap(req.Metadata),
			CreatedAt:  now,
		})
	}

	if err := s.repo.Notification().CreateBatch(ctx, nil, notifications); err != nil {
		return 0, fmt.Errorf("failed to persist notifications: %w", err)
	}

	for _, n := range notifications {
		s.broadcaster.PublishToUser(ctx, EventNotification, *n.UserID, n)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventNotificationCreated, events.NotificationCreatedData{
		Type:       string(req.Type),
		Title:      req.Title,
		Recipients: len(notifications),
		RelatedID:  stringValue(req.RelatedID),
	}))

	return len(notifications), nil
}

// resolveRecipients maps a target onto user ids. A global room resolves to
// the students whose tier matches the room.
func (s *notificationService) resolveRecipients(ctx context.Context, target NotificationTarget) ([]string, models.RoleTarget, *string, error) {
	switch {
	case target.UserID != nil && *target.UserID != "":
		return []string{*target.UserID}, models.TargetAll, nil, nil

	case target.Role != nil:
		filters := repositories.ProfileFilters{}
		if *target.Role != models.TargetAll {
			role := models.UserRole(*target.Role)
			filters.Role = &role
		}
		ids, err := s.repo.Profile().ListIDs(ctx, nil, filters)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to resolve role recipients: %w", err)
		}
		return ids, *target.Role, nil, nil

	case target.RoomID != nil:
		roomID, ok := canonicalRoomID(*target.RoomID)
		if !ok {
			return nil, "", nil, invalidArgument("room id %q is not a valid identifier", *target.RoomID)
		}
		room, err := s.repo.Room().GetByID(ctx, nil, roomID)
		if err != nil {
			return nil, "", nil, mapNotFound(err, ErrRoomNotFound, "get room")
		}

		if !room.IsGlobal() {
			return []string(room.Participants), models.TargetAll, &room.ID, nil
		}

		role := models.RoleStudent
		level := models.NormalizeLevel(room.Name)
		ids, err := s.repo.Profile().ListIDs(ctx, nil, repositories.ProfileFilters{Role: &role, Level: &level})
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to resolve room recipients: %w", err)
		}
		return ids, models.TargetStudent, &room.ID, nil
	}

	return nil, "", nil, invalidArgument("notification target is empty")
}

// ===== READ STATE =====

func (s *notificationService) List(ctx context.Context, principal *models.Principal, unreadOnly bool, page, pageSize int) (*models.NotificationList, error) {
	page, pageSize = DefaultPageLimits.Clamp(page, pageSize)
	recipient := recipientOf(principal)

	notifications, total, err := s.repo.Notification().ListFor(ctx, nil, recipient, repositories.NotificationFilters{
		UnreadOnly: unreadOnly,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.repo.Notification().CountUnreadFor(ctx, nil, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	if notifications == nil {
		notifications = []*models.Notification{}
	}

	return &models.NotificationList{
		Notifications: notifications,
		Total:         total,
		Unread:        unread,
		Page:          page,
		Size:          pageSize,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string, principal *models.Principal) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalidArgument("notification id %q is not a valid identifier", id)
	}

	updated, err := s.repo.Notification().MarkRead(ctx, nil, id, recipientOf(principal))
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !updated {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, principal *models.Principal) (int64, error) {
	updated, err := s.repo.Notification().MarkAllRead(ctx, nil, recipientOf(principal))
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	s.logger.Info("Marked all notifications read", "user_id", principal.ID, "updated", updated)
	return updated, nil
}

// ===== HELPERS =====

func recipientOf(principal *models.Principal) repositories.NotificationRecipient {
	return repositories.NotificationRecipient{UserID: principal.ID, Role: principal.Role}
}

func (s *notificationService) publishEvent(ctx context.Context, event *events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish domain event", "type", event.Type, "error", err)
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
