package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/events"
	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/realtime"
	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== IN-MEMORY REPOSITORY =====

// MockRepository keeps every table in memory behind one mutex.
type MockRepository struct {
	mu sync.Mutex

	profiles      map[string]*models.UserProfile
	courses       map[string]*models.Course
	completions   map[string]map[string][]string // user -> course -> lessons
	rooms         []*models.Room
	messages      []*models.Message
	notifications []*models.Notification

	// Failure injection
	roomErr       error
	latestErr     error
	unreadErr     error
	casCalls      int
	createBatches int

	// staleProfiles is what a lagging profile cache serves from GetByID.
	staleProfiles map[string]*models.UserProfile
	// beforeCAS runs once against the stored profile, inside the
	// compare-and-set, to emulate a concurrent tier write.
	beforeCAS func(p *models.UserProfile)
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		profiles:    make(map[string]*models.UserProfile),
		courses:     make(map[string]*models.Course),
		completions: make(map[string]map[string][]string),
	}
}

func (m *MockRepository) Profile() repositories.ProfileRepository           { return mockProfiles{m} }
func (m *MockRepository) Progress() repositories.ProgressRepository         { return mockProgress{m} }
func (m *MockRepository) Room() repositories.RoomRepository                 { return mockRooms{m} }
func (m *MockRepository) Message() repositories.MessageRepository           { return mockMessages{m} }
func (m *MockRepository) Notification() repositories.NotificationRepository { return mockNotifications{m} }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}
func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

// ===== SEEDING =====

func (m *MockRepository) addProfile(id string, role models.UserRole, level models.Level, onboarded bool) *models.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &models.UserProfile{
		ID:                  id,
		FullName:            "User " + id,
		Email:               id + "@example.com",
		Role:                role,
		Level:               level,
		OnboardingCompleted: onboarded,
		CreatedAt:           time.Now().UTC(),
	}
	m.profiles[id] = p
	return p
}

func (m *MockRepository) addCourse(id string, level models.Level, lessons ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	course := &models.Course{ID: id, Title: "Course " + id, Level: level}
	for i, l := range lessons {
		course.Lessons = append(course.Lessons, models.Lesson{ID: l, CourseID: id, Position: i})
	}
	m.courses[id] = course
}

func (m *MockRepository) addRoom(room *models.Room) *models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	m.rooms = append(m.rooms, room)
	return room
}

func (m *MockRepository) addMessage(msg *models.Message) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return msg
}

func (m *MockRepository) level(userID string) models.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID].Level
}

func (m *MockRepository) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *MockRepository) notificationsFor(userID string) []*models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Notification
	for _, n := range m.notifications {
		if n.UserID != nil && *n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func newTestID() string {
	return uuid.NewString()
}

func clone[T any](v *T) *T {
	data, _ := json.Marshal(v)
	out := new(T)
	_ = json.Unmarshal(data, out)
	return out
}

// ===== PROFILES =====

type mockProfiles struct{ m *MockRepository }

func (r mockProfiles) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.UserProfile, error) {
	r.m.mu.Lock()
	stale, ok := r.m.staleProfiles[id]
	r.m.mu.Unlock()
	if ok {
		return clone(stale), nil
	}
	return r.GetByIDFresh(ctx, tx, id)
}

func (r mockProfiles) GetByIDFresh(ctx context.Context, tx *gorm.DB, id string) (*models.UserProfile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clone(p), nil
}

func (r mockProfiles) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.UserProfile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.UserProfile
	for _, id := range ids {
		if p, ok := r.m.profiles[id]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (r mockProfiles) Upsert(ctx context.Context, tx *gorm.DB, profile *models.UserProfile) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.profiles[profile.ID]; ok {
		existing.FullName = profile.FullName
		existing.Email = profile.Email
		existing.Role = profile.Role
		return nil
	}
	r.m.profiles[profile.ID] = clone(profile)
	return nil
}

func (r mockProfiles) ListIDs(ctx context.Context, tx *gorm.DB, filters repositories.ProfileFilters) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []string
	for id, p := range r.m.profiles {
		if filters.Role != nil && p.Role != *filters.Role {
			continue
		}
		if filters.Level != nil && models.NormalizeLevel(string(p.Level)) != *filters.Level {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r mockProfiles) CompareAndSetLevel(ctx context.Context, tx *gorm.DB, id string, from, to models.Level, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.casCalls++
	p, ok := r.m.profiles[id]
	if ok && r.m.beforeCAS != nil {
		r.m.beforeCAS(p)
		r.m.beforeCAS = nil
	}
	if !ok || models.NormalizeLevel(string(p.Level)) != from {
		return false, nil
	}
	p.Level = to
	p.LevelUpdatedAt = &at
	return true, nil
}

func (r mockProfiles) SetOnboardingCompleted(ctx context.Context, tx *gorm.DB, id string, completed bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.OnboardingCompleted = completed
	return nil
}

// ===== PROGRESS =====

type mockProgress struct{ m *MockRepository }

func (r mockProgress) GetLevelCompletion(ctx context.Context, tx *gorm.DB, userID string, level models.Level) (*models.LevelCompletion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	result := &models.LevelCompletion{Level: level}
	for _, c := range r.m.courses {
		if !strings.EqualFold(strings.TrimSpace(string(c.Level)), string(level)) {
			continue
		}
		result.TotalCourses++

		done, ok := r.m.completions[userID][c.ID]
		if !ok {
			continue
		}
		complete := true
		for _, l := range c.Lessons {
			if !slices.Contains(done, l.ID) {
				complete = false
				break
			}
		}
		if complete {
			result.CompletedCourses++
		}
	}
	return result, nil
}

func (r mockProgress) GetCourse(ctx context.Context, tx *gorm.DB, courseID string) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[courseID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (r mockProgress) LessonBelongsToCourse(ctx context.Context, tx *gorm.DB, courseID, lessonID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[courseID]
	if !ok {
		return false, nil
	}
	return slices.ContainsFunc(c.Lessons, func(l models.Lesson) bool { return l.ID == lessonID }), nil
}

func (r mockProgress) AddCompletedLesson(ctx context.Context, tx *gorm.DB, userID, courseID, lessonID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.completions[userID] == nil {
		r.m.completions[userID] = make(map[string][]string)
	}
	if !slices.Contains(r.m.completions[userID][courseID], lessonID) {
		r.m.completions[userID][courseID] = append(r.m.completions[userID][courseID], lessonID)
	}
	return nil
}

// ===== ROOMS =====

type mockRooms struct{ m *MockRepository }

func (r mockRooms) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Room, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.roomErr != nil {
		return nil, r.m.roomErr
	}
	for _, room := range r.m.rooms {
		if room.ID == id {
			return clone(room), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r mockRooms) FindGlobalByName(ctx context.Context, tx *gorm.DB, name string) (*models.Room, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.roomErr != nil {
		return nil, r.m.roomErr
	}
	return r.findGlobal(name)
}

func (r mockRooms) findGlobal(name string) (*models.Room, error) {
	var oldest *models.Room
	for _, room := range r.m.rooms {
		if room.IsGlobal() && room.Name == name && (oldest == nil || room.CreatedAt.Before(oldest.CreatedAt)) {
			oldest = room
		}
	}
	if oldest == nil {
		return nil, repositories.ErrNotFound
	}
	return clone(oldest), nil
}

func (r mockRooms) CreateGlobalIfAbsent(ctx context.Context, tx *gorm.DB, name string) (*models.Room, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.roomErr != nil {
		return nil, r.m.roomErr
	}
	if room, err := r.findGlobal(name); err == nil {
		return room, nil
	}
	room := &models.Room{
		ID:        newTestID(),
		Name:      name,
		Type:      models.RoomGlobal,
		CreatedAt: time.Now().UTC(),
	}
	r.m.rooms = append(r.m.rooms, room)
	return clone(room), nil
}

func (r mockRooms) ListDirectFor(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Room, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.roomErr != nil {
		return nil, r.m.roomErr
	}
	var out []*models.Room
	for _, room := range r.m.rooms {
		if room.Type == models.RoomDirect && room.HasParticipant(userID) {
			out = append(out, clone(room))
		}
	}
	return out, nil
}

func (r mockRooms) Create(ctx context.Context, tx *gorm.DB, room *models.Room) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	room.CreatedAt = time.Now().UTC()
	r.m.rooms = append(r.m.rooms, clone(room))
	return nil
}

func (r mockRooms) TouchActivity(ctx context.Context, tx *gorm.DB, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, room := range r.m.rooms {
		if room.ID == id {
			room.LastActivityAt = &at
		}
	}
	return nil
}

// ===== MESSAGES =====

type mockMessages struct{ m *MockRepository }

func (r mockMessages) Create(ctx context.Context, tx *gorm.DB, message *models.Message) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.messages = append(r.m.messages, clone(message))
	return nil
}

func (r mockMessages) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, msg := range r.m.messages {
		if msg.ID == id {
			return clone(msg), nil
		}
	}
	return nil, repositories.ErrNotFound
}

// inRoom returns the room's messages oldest first.
func (r mockMessages) inRoom(roomID string) []*models.Message {
	var out []*models.Message
	for _, msg := range r.m.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r mockMessages) ListByRoom(ctx context.Context, tx *gorm.DB, roomID string, limit, offset int) ([]*models.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	all := r.inRoom(roomID)
	slices.Reverse(all)

	var out []*models.Message
	for i := offset; i < len(all) && len(out) < limit; i++ {
		out = append(out, clone(all[i]))
	}
	return out, nil
}

func (r mockMessages) ListAllByRoom(ctx context.Context, tx *gorm.DB, roomID string) ([]*models.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Message
	for _, msg := range r.inRoom(roomID) {
		out = append(out, clone(msg))
	}
	return out, nil
}

func (r mockMessages) LatestInRoom(ctx context.Context, tx *gorm.DB, roomID string) (*models.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.latestErr != nil {
		return nil, r.m.latestErr
	}
	all := r.inRoom(roomID)
	if len(all) == 0 {
		return nil, repositories.ErrNotFound
	}
	return clone(all[len(all)-1]), nil
}

func (r mockMessages) CountUnread(ctx context.Context, tx *gorm.DB, roomID, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.unreadErr != nil {
		return 0, r.m.unreadErr
	}
	var n int64
	for _, msg := range r.inRoom(roomID) {
		if msg.SenderID != userID && !msg.SeenByUser(userID) {
			n++
		}
	}
	return n, nil
}

func (r mockMessages) ToggleReaction(ctx context.Context, tx *gorm.DB, messageID string, reaction models.Reaction) ([]models.Reaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, msg := range r.m.messages {
		if msg.ID == messageID {
			msg.Reactions = models.ToggleReaction(msg.Reactions, reaction)
			return slices.Clone([]models.Reaction(msg.Reactions)), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r mockMessages) MarkRoomSeen(ctx context.Context, tx *gorm.DB, roomID, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, msg := range r.inRoom(roomID) {
		if !msg.SeenByUser(userID) {
			msg.SeenBy = append(msg.SeenBy, userID)
			n++
		}
	}
	return n, nil
}

func (r mockMessages) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i, msg := range r.m.messages {
		if msg.ID == id {
			r.m.messages = slices.Delete(r.m.messages, i, i+1)
			return nil
		}
	}
	return repositories.ErrNotFound
}

// ===== NOTIFICATIONS =====

type mockNotifications struct{ m *MockRepository }

func (r mockNotifications) CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*models.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.createBatches++
	for _, n := range notifications {
		r.m.notifications = append(r.m.notifications, clone(n))
	}
	return nil
}

func (r mockNotifications) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, n := range r.m.notifications {
		if n.ID == id {
			return clone(n), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func visibleTo(n *models.Notification, recipient repositories.NotificationRecipient) bool {
	if n.UserID != nil {
		return *n.UserID == recipient.UserID
	}
	return n.RoleTarget.Matches(recipient.Role)
}

func (r mockNotifications) ListFor(ctx context.Context, tx *gorm.DB, recipient repositories.NotificationRecipient, filters repositories.NotificationFilters) ([]*models.Notification, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var matched []*models.Notification
	for i := len(r.m.notifications) - 1; i >= 0; i-- {
		n := r.m.notifications[i]
		if visibleTo(n, recipient) && (!filters.UnreadOnly || !n.Read) {
			matched = append(matched, n)
		}
	}

	var out []*models.Notification
	for i := filters.Offset; i < len(matched) && len(out) < filters.Limit; i++ {
		out = append(out, clone(matched[i]))
	}
	return out, int64(len(matched)), nil
}

func (r mockNotifications) CountUnreadFor(ctx context.Context, tx *gorm.DB, recipient repositories.NotificationRecipient) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, n := range r.m.notifications {
		if visibleTo(n, recipient) && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r mockNotifications) MarkRead(ctx context.Context, tx *gorm.DB, id string, recipient repositories.NotificationRecipient) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, n := range r.m.notifications {
		if n.ID == id && visibleTo(n, recipient) {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

func (r mockNotifications) MarkAllRead(ctx context.Context, tx *gorm.DB, recipient repositories.NotificationRecipient) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, n := range r.m.notifications {
		if visibleTo(n, recipient) && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

// ===== BROADCASTER =====

type publishedEvent struct {
	Event   string
	Topic   string
	Payload interface{}
}

// MockBroadcaster records what would have been pushed.
type MockBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *MockBroadcaster) Publish(ctx context.Context, event, roomID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Event: event, Topic: realtime.RoomTopic(roomID), Payload: payload})
}

func (b *MockBroadcaster) PublishToUser(ctx context.Context, event, userID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Event: event, Topic: realtime.UserTopic(userID), Payload: payload})
}

func (b *MockBroadcaster) Transport() realtime.Transport { return nil }

func (b *MockBroadcaster) Events() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events)
}

func (b *MockBroadcaster) Named(event string) []publishedEvent {
	var out []publishedEvent
	for _, e := range b.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// ===== TEST ENVIRONMENT =====

type testEnv struct {
	repo          *MockRepository
	broadcaster   *MockBroadcaster
	publisher     *events.MockEventPublisher
	notifications NotificationService
	progression   *progressionService
	rooms         RoomService
	messages      MessageService
	identity      IdentityService
}

func newTestEnv() *testEnv {
	logger := testLogger()
	v := validator.New()

	env := &testEnv{
		repo:        NewMockRepository(),
		broadcaster: &MockBroadcaster{},
		publisher:   events.NewMockEventPublisher(logger),
	}
	env.notifications = NewNotificationService(env.repo, nil, logger, v, env.broadcaster, env.publisher)
	env.progression = NewProgressionService(env.repo, nil, logger, v, env.notifications, env.publisher).(*progressionService)
	env.rooms = NewRoomService(env.repo, nil, logger, v, env.broadcaster)
	env.messages = NewMessageService(env.repo, nil, logger, v, env.rooms, env.broadcaster, DefaultPageLimits)
	env.identity = NewIdentityService(env.repo, nil, logger)
	return env
}

// globalRooms creates the canonical rooms and returns them by tier.
func (e *testEnv) globalRooms(t *testing.T) map[models.Level]*models.Room {
	t.Helper()
	rooms, err := e.rooms.EnsureGlobalRooms(context.Background())
	if err != nil {
		t.Fatalf("failed to ensure global rooms: %v", err)
	}
	out := make(map[models.Level]*models.Room, len(rooms))
	for _, r := range rooms {
		out[models.NormalizeLevel(r.Name)] = r
	}
	return out
}

func student(id string, level models.Level) *models.Principal {
	return &models.Principal{ID: id, Name: "Student " + id, Role: models.RoleStudent, Level: level, OnboardingCompleted: true}
}

func staff(id string, role models.UserRole) *models.Principal {
	return &models.Principal{ID: id, Name: "Staff " + id, Role: role, OnboardingCompleted: true}
}
