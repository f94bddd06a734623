package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
)

// ProfileFilters selects profiles for fan-out
type ProfileFilters struct {
	Role  *models.UserRole
	Level *models.Level
}

// ProfileRepository stores the community side of a user: role, tier, onboarding.
type ProfileRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.UserProfile, error)

	// GetByIDFresh reads the stored row, bypassing the profile cache. Tier
	// decisions must use it.
	GetByIDFresh(ctx context.Context, tx *gorm.DB, id string) (*models.UserProfile, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.UserProfile, error)

	// Upsert refreshes name, email and role from the identity provider. The
	// stored tier and onboarding flag are never overwritten.
	Upsert(ctx context.Context, tx *gorm.DB, profile *models.UserProfile) error

	// ListIDs returns every profile id matching the filters.
	ListIDs(ctx context.Context, tx *gorm.DB, filters ProfileFilters) ([]string, error)

	// CompareAndSetLevel moves a profile from one tier to another only when
	// the stored tier still equals from. It reports whether a row changed.
	CompareAndSetLevel(ctx context.Context, tx *gorm.DB, id string, from, to models.Level, at time.Time) (bool, error)

	SetOnboardingCompleted(ctx context.Context, tx *gorm.DB, id string, completed bool) error
}
