package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/events"
	"github.com/SAP-F-2025/community-service/internal/realtime"
	"github.com/SAP-F-2025/community-service/internal/repositories"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Pagination PageLimits

	// EnsureRoomsOnStart creates the global rooms during Initialize.
	EnsureRoomsOnStart bool

	DefaultTimeout time.Duration
}

func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		Pagination:         DefaultPageLimits,
		EnsureRoomsOnStart: true,
		DefaultTimeout:     30 * time.Second,
	}
}

// ServiceDependencies are the collaborators every service is built from
type ServiceDependencies struct {
	DB             *gorm.DB
	Repo           repositories.Repository
	RepoManager    repositories.RepositoryManager
	Logger         *slog.Logger
	Validator      *validator.Validator
	Transport      realtime.Transport
	EventPublisher events.EventPublisher
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	deps   ServiceDependencies
	logger *slog.Logger
	config ServiceManagerConfig

	// Service instances
	broadcaster         Broadcaster
	notificationService NotificationService
	progressionService  ProgressionService
	roomService         RoomService
	messageService      MessageService
	identityService     IdentityService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		deps:   deps,
		logger: deps.Logger,
		config: config,
	}
}

// Initialize wires the services in dependency order
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if sm.config.EnsureRoomsOnStart {
		ensureCtx, cancel := sm.withTimeout(ctx)
		defer cancel()

		if _, err := sm.roomService.EnsureGlobalRooms(ensureCtx); err != nil {
			return fmt.Errorf("failed to ensure global rooms: %w", err)
		}
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() error {
	d := sm.deps
	if d.Repo == nil {
		return fmt.Errorf("repository is required")
	}
	if d.Transport == nil {
		return fmt.Errorf("push transport is required")
	}

	sm.broadcaster = NewBroadcaster(d.Transport, d.Logger)
	sm.logger.Info("Broadcaster initialized")

	sm.notificationService = NewNotificationService(d.Repo, d.DB, d.Logger, d.Validator, sm.broadcaster, d.EventPublisher)
	sm.logger.Info("Notification service initialized")

	sm.progressionService = NewProgressionService(d.Repo, d.DB, d.Logger, d.Validator, sm.notificationService, d.EventPublisher)
	sm.logger.Info("Progression service initialized")

	sm.roomService = NewRoomService(d.Repo, d.DB, d.Logger, d.Validator, sm.broadcaster)
	sm.logger.Info("Room service initialized")

	sm.messageService = NewMessageService(d.Repo, d.DB, d.Logger, d.Validator, sm.roomService, sm.broadcaster, sm.config.Pagination)
	sm.logger.Info("Message service initialized")

	sm.identityService = NewIdentityService(d.Repo, d.DB, d.Logger)
	sm.logger.Info("Identity service initialized")

	return nil
}

// Service getters
func (sm *serviceManager) Progression() ProgressionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.progressionService
}

func (sm *serviceManager) Room() RoomService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.roomService
}

func (sm *serviceManager) Message() MessageService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.messageService
}

func (sm *serviceManager) Notification() NotificationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.notificationService
}

func (sm *serviceManager) Identity() IdentityService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.identityService
}

func (sm *serviceManager) Broadcaster() Broadcaster {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.broadcaster
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if manager := sm.deps.RepoManager; manager != nil {
		if err := manager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("repository health check failed: %w", err)
		}
		return nil
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

// Shutdown waits for background tier evaluations, then releases the
// repository.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.progressionService != nil {
		done := make(chan struct{})
		go func() {
			sm.progressionService.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			sm.logger.Warn("Shutdown deadline reached with tier evaluations in flight")
		}
	}

	if manager := sm.deps.RepoManager; manager != nil {
		if err := manager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// ===== HELPER FUNCTIONS =====

func (sm *serviceManager) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := sm.config.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}
