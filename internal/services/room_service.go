package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

type roomService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	broadcaster Broadcaster
}

func NewRoomService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, broadcaster Broadcaster) RoomService {
	return &roomService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		broadcaster: broadcaster,
	}
}

// ===== DIRECTORY =====

// ListRoomsFor returns the global rooms in tier order followed by the
// principal's direct rooms. Locked rooms are listed without message data.
func (s *roomService) ListRoomsFor(ctx context.Context, principal *models.Principal) (summaries []*models.RoomSummary, err error) {
	ctx, span := startSpan(ctx, "RoomService.ListRoomsFor", attribute.String("user.id", principal.ID))
	defer func() { endSpan(span, err) }()

	if principal.IsStudent() && !principal.OnboardingCompleted {
		return []*models.RoomSummary{}, nil
	}

	globals, err := s.EnsureGlobalRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	directs, err := s.repo.Room().ListDirectFor(ctx, nil, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list direct rooms: %v", ErrStoreUnavailable, err)
	}

	rooms := append(globals, directs...)
	summaries = make([]*models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, s.summarize(ctx, principal, room))
	}

	return summaries, nil
}

// summarize never fails; enrichment errors leave a bare summary.
func (s *roomService) summarize(ctx context.Context, principal *models.Principal, room *models.Room) *models.RoomSummary {
	summary := &models.RoomSummary{
		ID:             room.ID,
		Name:           room.Name,
		Type:           room.Type,
		IsLocked:       !CanAccessRoom(principal, room),
		LastActivityAt: room.LastActivityAt,
	}
	if summary.IsLocked {
		return summary
	}

	last, err := s.repo.Message().LatestInRoom(ctx, nil, room.ID)
	switch {
	case err == nil:
		summary.LastMessage = last
	case errors.Is(err, repositories.ErrNotFound):
	default:
		s.logger.Warn("Failed to load last message", "room_id", room.ID, "error", err)
		return summary
	}

	unread, err := s.repo.Message().CountUnread(ctx, nil, room.ID, principal.ID)
	if err != nil {
		s.logger.Warn("Failed to count unread messages", "room_id", room.ID, "error", err)
		return summary
	}
	summary.UnreadCount = unread

	return summary
}

// EnsureGlobalRooms looks each canonical room up and inserts it only when
// missing. Concurrent callers may race on the insert; the store keeps one
// row per name and readers always resolve the oldest.
func (s *roomService) EnsureGlobalRooms(ctx context.Context) ([]*models.Room, error) {
	rooms := make([]*models.Room, 0, len(models.GlobalRoomNames))

	for _, name := range models.GlobalRoomNames {
		room, err := s.repo.Room().FindGlobalByName(ctx, nil, name)
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Info("Creating global room", "name", name)
			room, err = s.repo.Room().CreateGlobalIfAbsent(ctx, nil, name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to ensure global room %s: %w", name, err)
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}

// GetRoom resolves a room and enforces the access policy.
func (s *roomService) GetRoom(ctx context.Context, roomID string, principal *models.Principal) (*models.Room, error) {
	canonical, ok := canonicalRoomID(roomID)
	if !ok {
		return nil, invalidArgument("room id %q is not a valid identifier", roomID)
	}

	room, err := s.repo.Room().GetByID(ctx, nil, canonical)
	if err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound, "get room")
	}

	if !CanAccessRoom(principal, room) {
		reason := "room is not open to your level"
		if !room.IsGlobal() {
			reason = "not a participant"
		}
		return nil, NewPermissionError(principal.ID, room.ID, "room", "access", reason)
	}

	return room, nil
}

// ===== DIRECT ROOMS =====

func (s *roomService) CreateDirectRoom(ctx context.Context, principal *models.Principal, req *CreateDirectRoomRequest) (*models.Room, error) {
	s.logger.Info("Creating direct room", "creator_id", principal.ID, "participants", len(req.ParticipantIDs))

	if !principal.Role.IsStaff() {
		return nil, NewPermissionError(principal.ID, "", "room", "create_direct", "only staff can open direct rooms")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid direct room: %w", err)
	}

	participants := []string{principal.ID}
	for _, id := range req.ParticipantIDs {
		if !slices.Contains(participants, id) {
			participants = append(participants, id)
		}
	}
	if len(participants) < 2 {
		return nil, NewBusinessRuleError("direct_room_participants", "a direct room needs at least one other participant", nil)
	}

	profiles, err := s.repo.Profile().GetByIDs(ctx, nil, participants[1:])
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if missing := missingProfiles(participants[1:], profiles); len(missing) > 0 {
		return nil, NewBusinessRuleError("direct_room_participants", "unknown participants", map[string]interface{}{
			"missing": missing,
		})
	}

	name := req.Name
	if name == "" {
		name = "Direct conversation"
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           models.RoomDirect,
		Participants:   participants,
		CreatedBy:      &principal.ID,
		LastActivityAt: &now,
	}

	if err := s.repo.Room().Create(ctx, nil, room); err != nil {
		return nil, fmt.Errorf("failed to create direct room: %w", err)
	}

	for _, userID := range participants {
		s.broadcaster.PublishToUser(ctx, EventRoomCreated, userID, room)
	}

	s.logger.Info("Direct room created", "room_id", room.ID)
	return room, nil
}

func missingProfiles(ids []string, profiles []*models.UserProfile) []string {
	found := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		found[p.ID] = true
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
