package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

// LessonCompletionRecorder is the progression entry point the consumer feeds
type LessonCompletionRecorder interface {
	RecordLessonCompletion(ctx context.Context, userID, courseID, lessonID string) error
}

// Consumer routes external lesson-complete events into the progression engine.
// Events that keep failing after retries are moved to "<topic>.poison".
type Consumer struct {
	router    *message.Router
	recorder  LessonCompletionRecorder
	validator *validator.Validator
	logger    *slog.Logger
}

func NewConsumer(bus *Bus, topic string, recorder LessonCompletionRecorder, v *validator.Validator, logger *slog.Logger) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, bus.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	poisonQueue, err := middleware.PoisonQueue(bus.Publisher, topic+".poison")
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue: %w", err)
	}

	router.AddMiddleware(
		poisonQueue,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          bus.Logger,
		}.Middleware,
		middleware.Recoverer,
	)

	c := &Consumer{
		router:    router,
		recorder:  recorder,
		validator: v,
		logger:    logger,
	}

	router.AddNoPublisherHandler("lesson_completed", topic, bus.Subscriber, c.handleLessonCompleted)

	return c, nil
}

// Run blocks until ctx is cancelled or the router is closed.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

func (c *Consumer) Close() error {
	return c.router.Close()
}

func (c *Consumer) handleLessonCompleted(msg *message.Message) error {
	var event models.LessonCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Warn("Dropping malformed lesson-complete event", "message_id", msg.UUID, "error", err)
		return nil
	}

	if err := c.validator.Validate(&event); err != nil {
		c.logger.Warn("Dropping invalid lesson-complete event", "message_id", msg.UUID, "error", err)
		return nil
	}

	c.logger.Info("Processing lesson-complete event",
		"message_id", msg.UUID,
		"user_id", event.UserID,
		"course_id", event.CourseID,
		"lesson_id", event.LessonID)

	if err := c.recorder.RecordLessonCompletion(msg.Context(), event.UserID, event.CourseID, event.LessonID); err != nil {
		return fmt.Errorf("failed to record lesson completion: %w", err)
	}
	return nil
}
