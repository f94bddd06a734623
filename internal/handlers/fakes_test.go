package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/realtime"
	"github.com/SAP-F-2025/community-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== IDENTITY =====

type fakeVerifier map[string]*models.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (*models.Identity, error) {
	identity, ok := f[token]
	if !ok {
		return nil, casdoor.ErrInvalidToken
	}
	return identity, nil
}

var testTokens = fakeVerifier{
	"student-token":    {ID: "s1", Name: "Sam", Role: models.RoleStudent},
	"instructor-token": {ID: "t1", Name: "Tess", Role: models.RoleInstructor},
	"admin-token":      {ID: "a1", Name: "Ada", Role: models.RoleAdmin},
}

type stubIdentity struct {
	mu         sync.Mutex
	onboarded  map[string]bool
	resolveErr error
}

func (s *stubIdentity) ResolvePrincipal(_ context.Context, identity *models.Identity) (*models.Principal, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	done, seen := s.onboarded[identity.ID]
	return &models.Principal{
		ID:                  identity.ID,
		Name:                identity.Name,
		Role:                identity.Role,
		Level:               models.LevelBeginner,
		OnboardingCompleted: !seen || done,
	}, nil
}

func (s *stubIdentity) CompleteOnboarding(_ context.Context, principal *models.Principal) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded[principal.ID] = true
	updated := *principal
	updated.OnboardingCompleted = true
	return &updated, nil
}

// ===== SERVICES =====

type stubRooms struct {
	summaries []*models.RoomSummary
	room      *models.Room
	err       error
	direct    *services.CreateDirectRoomRequest
}

func (s *stubRooms) ListRoomsFor(context.Context, *models.Principal) ([]*models.RoomSummary, error) {
	return s.summaries, s.err
}

func (s *stubRooms) EnsureGlobalRooms(context.Context) ([]*models.Room, error) {
	return nil, nil
}

func (s *stubRooms) GetRoom(context.Context, string, *models.Principal) (*models.Room, error) {
	return s.room, s.err
}

func (s *stubRooms) CreateDirectRoom(_ context.Context, _ *models.Principal, req *services.CreateDirectRoomRequest) (*models.Room, error) {
	s.direct = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Room{ID: "d1", Name: req.Name, Type: models.RoomDirect, Participants: req.ParticipantIDs}, nil
}

type stubMessages struct {
	err        error
	page       int
	pageSize   int
	posted     *services.PostMessageRequest
	emoji      string
	deleted    string
	transcript *services.Transcript
}

func (s *stubMessages) ListMessages(_ context.Context, _ string, _ *models.Principal, page, pageSize int) (*models.MessagePage, error) {
	s.page, s.pageSize = page, pageSize
	if s.err != nil {
		return nil, s.err
	}
	return &models.MessagePage{Messages: []*models.Message{}, Page: page, PageSize: pageSize}, nil
}

func (s *stubMessages) PostMessage(_ context.Context, roomID string, p *models.Principal, req *services.PostMessageRequest) (*models.Message, error) {
	s.posted = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: "m1", RoomID: roomID, SenderID: p.ID, Type: req.Type, Content: req.Content}, nil
}

func (s *stubMessages) ToggleReaction(_ context.Context, _ string, p *models.Principal, emoji string) ([]models.Reaction, error) {
	s.emoji = emoji
	if s.err != nil {
		return nil, s.err
	}
	return []models.Reaction{{UserID: p.ID, Emoji: emoji}}, nil
}

func (s *stubMessages) DeleteMessage(_ context.Context, messageID string, _ *models.Principal) error {
	s.deleted = messageID
	return s.err
}

func (s *stubMessages) MarkRoomSeen(context.Context, string, *models.Principal) (int64, error) {
	return 4, s.err
}

func (s *stubMessages) ExportTranscript(context.Context, string, *models.Principal) (*services.Transcript, error) {
	return s.transcript, s.err
}

type stubNotifications struct {
	err        error
	unreadOnly bool
	notified   *services.NotifyRequest
	readID     string
}

func (s *stubNotifications) Notify(_ context.Context, req *services.NotifyRequest) (int, error) {
	s.notified = req
	return 2, s.err
}

func (s *stubNotifications) List(_ context.Context, _ *models.Principal, unreadOnly bool, page, pageSize int) (*models.NotificationList, error) {
	s.unreadOnly = unreadOnly
	return &models.NotificationList{Notifications: []*models.Notification{}, Page: page, Size: pageSize}, s.err
}

func (s *stubNotifications) MarkRead(_ context.Context, id string, _ *models.Principal) error {
	s.readID = id
	return s.err
}

func (s *stubNotifications) MarkAllRead(context.Context, *models.Principal) (int64, error) {
	return 3, s.err
}

type stubProgression struct {
	err      error
	recorded []string
}

func (s *stubProgression) ComputeEffectiveLevel(p *models.Principal) models.Level { return p.Level }
func (s *stubProgression) EvaluateAdvancement(string) {}
func (s *stubProgression) Wait() {}

func (s *stubProgression) EvaluateAdvancementSync(context.Context, string) (*services.AdvancementResult, error) {
	return &services.AdvancementResult{}, nil
}

func (s *stubProgression) RecordLessonCompletion(_ context.Context, learnerID, courseID, lessonID string) error {
	s.recorded = []string{learnerID, courseID, lessonID}
	return s.err
}

func (s *stubProgression) GetProgress(_ context.Context, p *models.Principal) (*models.ProgressResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ProgressResponse{UserID: p.ID, Level: p.Level}, nil
}

type stubManager struct {
	identity      *stubIdentity
	rooms         *stubRooms
	messages      *stubMessages
	notifications *stubNotifications
	progression   *stubProgression
	broadcaster   services.Broadcaster
	healthErr     error
}

func (m *stubManager) Progression() services.ProgressionService { return m.progression }
func (m *stubManager) Room() services.RoomService { return m.rooms }
func (m *stubManager) Message() services.MessageService { return m.messages }
func (m *stubManager) Notification() services.NotificationService { return m.notifications }
func (m *stubManager) Identity() services.IdentityService { return m.identity }
func (m *stubManager) Broadcaster() services.Broadcaster { return m.broadcaster }
func (m *stubManager) Initialize(context.Context) error { return nil }
func (m *stubManager) HealthCheck(context.Context) error { return m.healthErr }
func (m *stubManager) Shutdown(context.Context) error { return nil }

// ===== TEST SERVER =====

type testServer struct {
	router  *gin.Engine
	manager *stubManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	transport := realtime.NewLocalTransport(testLogger())
	t.Cleanup(func() { transport.Close() })

	manager := &stubManager{
		identity:      &stubIdentity{onboarded: map[string]bool{}},
		rooms:         &stubRooms{},
		messages:      &stubMessages{},
		notifications: &stubNotifications{},
		progression:   &stubProgression{},
		broadcaster:   services.NewBroadcaster(transport, testLogger()),
	}

	logger := utils.NewSlogLogger(testLogger())
	router := gin.New()
	SetupMiddleware(router, logger, []string{"*"})
	NewHandlerManager(manager, testTokens, logger, "community-service").SetupRoutes(router)

	return &testServer{router: router, manager: manager}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
