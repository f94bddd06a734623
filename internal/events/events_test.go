package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/community-service/internal/config"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

const lessonTopic = "lms.lesson_completed"

type recordedCompletion struct {
	UserID, CourseID, LessonID string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCompletion
	err   error
}

func (f *fakeRecorder) RecordLessonCompletion(_ context.Context, userID, courseID, lessonID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCompletion{userID, courseID, lessonID})
	return f.err
}

func (f *fakeRecorder) Calls() []recordedCompletion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCompletion(nil), f.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startConsumer(t *testing.T, recorder LessonCompletionRecorder) *Bus {
	t.Helper()

	bus, err := NewBus(config.KafkaConfig{}, testLogger())
	require.NoError(t, err)
	require.False(t, bus.IsKafka())

	consumer, err := NewConsumer(bus, lessonTopic, recorder, validator.New(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = consumer.Run(ctx) }()

	select {
	case <-consumer.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not start")
	}

	t.Cleanup(func() {
		cancel()
		_ = consumer.Close()
		_ = bus.Close()
	})
	return bus
}

func publishRaw(t *testing.T, bus *Bus, topic string, payload string) {
	t.Helper()
	require.NoError(t, bus.Publisher.Publish(topic, message.NewMessage(watermill.NewUUID(), []byte(payload))))
}

func TestConsumer_RecordsLessonCompletion(t *testing.T) {
	recorder := &fakeRecorder{}
	bus := startConsumer(t, recorder)

	publishRaw(t, bus, lessonTopic, `{"user_id":"u1","course_id":"c1","lesson_id":"l2","occurred_at":"2026-01-02T10:00:00Z"}`)

	require.Eventually(t, func() bool { return len(recorder.Calls()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, recordedCompletion{"u1", "c1", "l2"}, recorder.Calls()[0])
}

func TestConsumer_DropsMalformedAndInvalidEvents(t *testing.T) {
	recorder := &fakeRecorder{}
	bus := startConsumer(t, recorder)

	publishRaw(t, bus, lessonTopic, `not json`)
	publishRaw(t, bus, lessonTopic, `{"user_id":"u1","course_id":""}`)
	publishRaw(t, bus, lessonTopic, `{"user_id":"u9","course_id":"c9","lesson_id":"l9"}`)

	require.Eventually(t, func() bool { return len(recorder.Calls()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "u9", recorder.Calls()[0].UserID)
}

func TestConsumer_FailingEventsGoToPoisonQueue(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("database is down")}
	bus := startConsumer(t, recorder)

	poisoned, err := bus.Subscriber.Subscribe(context.Background(), lessonTopic+".poison")
	require.NoError(t, err)

	publishRaw(t, bus, lessonTopic, `{"user_id":"u1","course_id":"c1","lesson_id":"l1"}`)

	select {
	case msg := <-poisoned:
		msg.Ack()
		assert.JSONEq(t, `{"user_id":"u1","course_id":"c1","lesson_id":"l1"}`, string(msg.Payload))
	case <-time.After(10 * time.Second):
		t.Fatal("event was not moved to the poison queue")
	}

	assert.GreaterOrEqual(t, len(recorder.Calls()), 2, "handler should be retried")
}

func TestWatermillEventPublisher_PublishesEnvelope(t *testing.T) {
	bus, err := NewBus(config.KafkaConfig{}, testLogger())
	require.NoError(t, err)
	defer bus.Close()

	messages, err := bus.Subscriber.Subscribe(context.Background(), "community.events")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(bus.Publisher, "community.events", testLogger())
	event := NewEvent(EventLevelAdvanced, LevelAdvancedData{UserID: "u1", FromLevel: "beginner", ToLevel: "intermediate"})
	require.NoError(t, publisher.Publish(context.Background(), event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventLevelAdvanced), msg.Metadata.Get("event_type"))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, "community-service", decoded["source"])
		assert.Equal(t, "1.0", decoded["version"])
		data := decoded["data"].(map[string]interface{})
		assert.Equal(t, "intermediate", data["to_level"])
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(testLogger())

	require.NoError(t, mock.Publish(context.Background(), NewEvent(EventNotificationCreated, nil)))
	events := mock.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
}
