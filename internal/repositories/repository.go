package repositories

import (
	"context"
	"errors"
)

// ErrNotFound is returned by every repository when a record is absent.
var ErrNotFound = errors.New("record not found")

// Repository aggregates the community repositories
type Repository interface {
	Profile() ProfileRepository
	Progress() ProgressRepository
	Room() RoomRepository
	Message() MessageRepository
	Notification() NotificationRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager manages repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
