package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/events"
	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

const (
	evaluationTimeout = 30 * time.Second

	// a tier read that lost a race is retried once against the new tier
	maxEvaluationAttempts = 2
)

type progressionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	notifier  NotificationService
	events    events.EventPublisher

	inflight sync.WaitGroup
	now      func() time.Time
}

func NewProgressionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, notifier NotificationService, publisher events.EventPublisher) ProgressionService {
	return &progressionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		notifier:  notifier,
		events:    publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *progressionService) ComputeEffectiveLevel(principal *models.Principal) models.Level {
	return ComputeEffectiveLevel(principal)
}

// ===== ADVANCEMENT =====

// EvaluateAdvancement runs one evaluation in the background on a context
// detached from the trigger. Errors are logged and dropped.
func (s *progressionService) EvaluateAdvancement(learnerID string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), evaluationTimeout)
		defer cancel()

		if _, err := s.EvaluateAdvancementSync(ctx, learnerID); err != nil {
			s.logger.Error("Tier evaluation aborted", "user_id", learnerID, "error", err)
		}
	}()
}

func (s *progressionService) Wait() {
	s.inflight.Wait()
}

// EvaluateAdvancementSync advances the learner by at most one tier. The
// write is a compare-and-set on the tier read from the store, so concurrent
// evaluations cannot advance twice for the same completed tier. When the
// tier moved between the read and the write, the evaluation runs once more
// against the new tier.
func (s *progressionService) EvaluateAdvancementSync(ctx context.Context, learnerID string) (result *AdvancementResult, err error) {
	ctx, span := startSpan(ctx, "ProgressionService.EvaluateAdvancement", attribute.String("user.id", learnerID))
	defer func() { endSpan(span, err) }()

	for attempt := 1; attempt <= maxEvaluationAttempts; attempt++ {
		var conflict bool
		result, conflict, err = s.evaluateOnce(ctx, learnerID)
		if err != nil || !conflict {
			return result, err
		}
		s.logger.Info("Tier changed during evaluation", "user_id", learnerID, "level", result.From, "attempt", attempt)
	}

	return result, nil
}

// evaluateOnce reports conflict when the compare-and-set matched no row.
func (s *progressionService) evaluateOnce(ctx context.Context, learnerID string) (*AdvancementResult, bool, error) {
	profile, err := s.repo.Profile().GetByIDFresh(ctx, nil, learnerID)
	if err != nil {
		return nil, false, mapNotFound(err, ErrProfileNotFound, "load learner profile")
	}

	current := models.NormalizeLevel(string(profile.Level))
	result := &AdvancementResult{UserID: learnerID, From: current, To: current}

	if profile.Role.IsStaff() {
		return result, false, nil
	}

	next, ok := current.Next()
	if !ok {
		return result, false, nil
	}

	completion, err := s.repo.Progress().GetLevelCompletion(ctx, nil, learnerID, current)
	if err != nil {
		return nil, false, fmt.Errorf("failed to evaluate %s completion: %w", current, err)
	}
	if !completion.IsComplete() {
		s.logger.Debug("Tier not complete",
			"user_id", learnerID,
			"level", current,
			"completed", completion.CompletedCourses,
			"total", completion.TotalCourses)
		return result, false, nil
	}

	advancedAt := s.now()
	changed, err := s.repo.Profile().CompareAndSetLevel(ctx, nil, learnerID, current, next, advancedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to persist tier: %w", err)
	}
	if !changed {
		return result, true, nil
	}

	result.To = next
	result.Advanced = true

	s.logger.Info("Learner advanced", "user_id", learnerID, "from", current, "to", next)
	s.announceAdvancement(ctx, learnerID, current, next, advancedAt)

	return result, false, nil
}

// announceAdvancement emits the level_up notification and domain event.
// Failures never undo the advancement.
func (s *progressionService) announceAdvancement(ctx context.Context, learnerID string, from, to models.Level, at time.Time) {
	if s.notifier != nil {
		userID := learnerID
		_, err := s.notifier.Notify(ctx, &NotifyRequest{
			Target:  NotificationTarget{UserID: &userID},
			Type:    models.NotificationLevelUp,
			Title:   fmt.Sprintf("Welcome to %s!", to.RoomName()),
			Message: fmt.Sprintf("You completed every %s course and unlocked the %s room.", from, to.RoomName()),
			Metadata: map[string]interface{}{
				"from": string(from),
				"to":   string(to),
			},
		})
		if err != nil {
			s.logger.Warn("Failed to send level-up notification", "user_id", learnerID, "error", err)
		}
	}

	if s.events != nil {
		event := events.NewEvent(events.EventLevelAdvanced, events.LevelAdvancedData{
			UserID:     learnerID,
			FromLevel:  string(from),
			ToLevel:    string(to),
			AdvancedAt: at,
		})
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish level advanced event", "user_id", learnerID, "error", err)
		}
	}
}

// ===== COMPLETION INGESTION =====

// RecordLessonCompletion stores the lesson against the learner's completion
// record and schedules a tier evaluation.
func (s *progressionService) RecordLessonCompletion(ctx context.Context, learnerID, courseID, lessonID string) (err error) {
	ctx, span := startSpan(ctx, "ProgressionService.RecordLessonCompletion",
		attribute.String("user.id", learnerID),
		attribute.String("course.id", courseID),
		attribute.String("lesson.id", lessonID))
	defer func() { endSpan(span, err) }()

	req := &LessonCompletionRequest{
		UserID:   strings.TrimSpace(learnerID),
		CourseID: strings.TrimSpace(courseID),
		LessonID: strings.TrimSpace(lessonID),
	}
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("invalid lesson completion: %w", err)
	}

	if _, err := s.repo.Progress().GetCourse(ctx, nil, req.CourseID); err != nil {
		return mapNotFound(err, ErrCourseNotFound, "get course")
	}

	belongs, err := s.repo.Progress().LessonBelongsToCourse(ctx, nil, req.CourseID, req.LessonID)
	if err != nil {
		return fmt.Errorf("failed to check lesson: %w", err)
	}
	if !belongs {
		return invalidArgument("lesson %s does not belong to course %s", req.LessonID, req.CourseID)
	}

	if err := s.repo.Progress().AddCompletedLesson(ctx, nil, req.UserID, req.CourseID, req.LessonID); err != nil {
		return fmt.Errorf("failed to record lesson completion: %w", err)
	}

	s.logger.Info("Lesson completion recorded", "user_id", req.UserID, "course_id", req.CourseID, "lesson_id", req.LessonID)

	s.EvaluateAdvancement(req.UserID)
	return nil
}

// ===== PROGRESS =====

func (s *progressionService) GetProgress(ctx context.Context, principal *models.Principal) (*models.ProgressResponse, error) {
	response := &models.ProgressResponse{
		UserID: principal.ID,
		Level:  ComputeEffectiveLevel(principal),
	}

	if principal.Role.IsStaff() {
		response.Completion = models.LevelCompletion{Level: response.Level}
		return response, nil
	}

	profile, err := s.repo.Profile().GetByIDFresh(ctx, nil, principal.ID)
	switch {
	case err == nil:
		response.Level = models.NormalizeLevel(string(profile.Level))
		response.UpdatedAt = profile.LevelUpdatedAt
	case errors.Is(err, repositories.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	completion, err := s.repo.Progress().GetLevelCompletion(ctx, nil, principal.ID, response.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate completion: %w", err)
	}
	response.Completion = *completion

	if next, ok := response.Level.Next(); ok {
		response.NextLevel = &next
	}
	return response, nil
}
