package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

type messageService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	rooms       RoomService
	broadcaster Broadcaster
	limits      PageLimits
	now         func() time.Time
}

func NewMessageService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, rooms RoomService, broadcaster Broadcaster, limits PageLimits) MessageService {
	return &messageService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		rooms:       rooms,
		broadcaster: broadcaster,
		limits:      limits,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ===== READ OPERATIONS =====

// ListMessages returns one page of a room's history in display order. Pages
// are counted from the newest message.
func (s *messageService) ListMessages(ctx context.Context, roomID string, principal *models.Principal, page, pageSize int) (result *models.MessagePage, err error) {
	ctx, span := startSpan(ctx, "MessageService.ListMessages", attribute.String("room.id", roomID))
	defer func() { endSpan(span, err) }()

	page, pageSize = s.limits.Clamp(page, pageSize)

	room, err := s.rooms.GetRoom(ctx, roomID, principal)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.Message().ListByRoom(ctx, nil, room.ID, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	hasMore := len(messages) > pageSize
	if hasMore {
		messages = messages[:pageSize]
	}
	slices.Reverse(messages)

	if messages == nil {
		messages = []*models.Message{}
	}

	return &models.MessagePage{
		Messages: messages,
		Page:     page,
		PageSize: pageSize,
		HasMore:  hasMore,
	}, nil
}

// ===== WRITE OPERATIONS =====

// PostMessage persists a message and then broadcasts it to the room.
func (s *messageService) PostMessage(ctx context.Context, roomID string, principal *models.Principal, req *PostMessageRequest) (message *models.Message, err error) {
	ctx, span := startSpan(ctx, "MessageService.PostMessage", attribute.String("room.id", roomID))
	defer func() { endSpan(span, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	if principal.IsStudent() && !principal.OnboardingCompleted {
		return nil, ErrOnboardingIncomplete
	}

	room, err := s.rooms.GetRoom(ctx, roomID, principal)
	if err != nil {
		return nil, err
	}

	now := s.now()
	message = &models.Message{
		ID:         models.NewMessageID(),
		RoomID:     room.ID,
		SenderID:   principal.ID,
		SenderName: principal.Name,
		Type:       req.Type,
		Content:    req.Content,
		Reactions:  []models.Reaction{},
		SeenBy:     []string{principal.ID},
		Delivered:  true,
		CreatedAt:  now,
	}
	if req.FileMeta != nil {
		message.FileURL = &req.FileMeta.URL
		message.FileName = &req.FileMeta.Name
		message.FileSize = &req.FileMeta.Size
	}

	if err := s.repo.Message().Create(ctx, nil, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if err := s.repo.Room().TouchActivity(ctx, nil, room.ID, now); err != nil {
		s.logger.Warn("Failed to update room activity", "room_id", room.ID, "error", err)
	}

	s.logger.Info("Message posted", "message_id", message.ID, "room_id", room.ID, "sender_id", principal.ID)
	s.broadcaster.Publish(ctx, EventNewMessage, room.ID, message)

	return message, nil
}

// ToggleReaction adds the principal's emoji, or removes it when present.
func (s *messageService) ToggleReaction(ctx context.Context, messageID string, principal *models.Principal, emoji string) ([]models.Reaction, error) {
	if err := s.validator.Validate(&ReactionRequest{Emoji: emoji}); err != nil {
		return nil, fmt.Errorf("invalid reaction: %w", err)
	}

	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.GetRoom(ctx, message.RoomID, principal)
	if err != nil {
		return nil, err
	}

	reactions, err := s.repo.Message().ToggleReaction(ctx, nil, message.ID, models.Reaction{
		Emoji:    emoji,
		UserID:   principal.ID,
		UserName: principal.Name,
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMessageNotFound, "toggle reaction")
	}
	if reactions == nil {
		reactions = []models.Reaction{}
	}

	s.broadcaster.Publish(ctx, EventReactionUpdated, room.ID, map[string]interface{}{
		"messageId": message.ID,
		"reactions": reactions,
	})

	return reactions, nil
}

// DeleteMessage hard-deletes a message. Only its sender may do so.
func (s *messageService) DeleteMessage(ctx context.Context, messageID string, principal *models.Principal) error {
	message, err := s.getMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if message.SenderID != principal.ID {
		return NewForbiddenError(principal.ID, message.ID, "message", "delete", "only the sender can delete a message")
	}

	if err := s.repo.Message().Delete(ctx, nil, message.ID); err != nil {
		return mapNotFound(err, ErrMessageNotFound, "delete message")
	}

	s.logger.Info("Message deleted", "message_id", message.ID, "room_id", message.RoomID, "user_id", principal.ID)
	s.broadcaster.Publish(ctx, EventMessageDeleted, message.RoomID, map[string]interface{}{
		"messageId": message.ID,
		"roomId":    message.RoomID,
	})

	return nil
}

// MarkRoomSeen records the principal in seenBy of every message in the room.
func (s *messageService) MarkRoomSeen(ctx context.Context, roomID string, principal *models.Principal) (int64, error) {
	room, err := s.rooms.GetRoom(ctx, roomID, principal)
	if err != nil {
		return 0, err
	}

	updated, err := s.repo.Message().MarkRoomSeen(ctx, nil, room.ID, principal.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark room seen: %w", err)
	}

	if updated > 0 {
		s.broadcaster.Publish(ctx, EventMessagesSeen, room.ID, map[string]interface{}{
			"roomId": room.ID,
			"userId": principal.ID,
			"count":  updated,
		})
	}
	return updated, nil
}

// ===== HELPERS =====

func (s *messageService) getMessage(ctx context.Context, messageID string) (*models.Message, error) {
	id, err := uuid.Parse(strings.TrimSpace(messageID))
	if err != nil {
		return nil, invalidArgument("message id %q is not a valid identifier", messageID)
	}

	message, err := s.repo.Message().GetByID(ctx, nil, id.String())
	if err != nil {
		return nil, mapNotFound(err, ErrMessageNotFound, "get message")
	}
	return message, nil
}
