package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/community-service/internal/cache"
	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

type ProfilePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewProfilePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ProfileRepository {
	return &ProfilePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// GetByID is cache-aside. Writes refresh the entry through refreshCache.
func (p *ProfilePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.UserProfile, error) {
	var profile models.UserProfile

	err := p.cacheManager.Profile.CacheOrExecute(ctx, cache.ProfileKey(id), &profile, cache.ProfileCacheConfig.TTL, func() (interface{}, error) {
		return p.GetByIDFresh(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (p *ProfilePostgreSQL) GetByIDFresh(ctx context.Context, tx *gorm.DB, id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := p.helpers.getDB(tx).WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get profile")
	}
	return &profile, nil
}

// refreshCache overwrites the cached profile with the committed row. Inside a
// transaction the row is not committed yet, so the entry is only dropped.
func (p *ProfilePostgreSQL) refreshCache(ctx context.Context, tx *gorm.DB, id string) {
	if tx != nil || !p.cacheManager.Profile.Available() {
		cache.InvalidateProfileCache(ctx, p.cacheManager, id)
		return
	}

	profile, err := p.GetByIDFresh(ctx, nil, id)
	if err != nil {
		cache.InvalidateProfileCache(ctx, p.cacheManager, id)
		return
	}
	if err := p.cacheManager.Profile.Set(ctx, cache.ProfileKey(id), profile, cache.ProfileCacheConfig.TTL); err != nil {
		slog.WarnContext(ctx, "Failed to refresh cached profile", "error", err, "user_id", id)
		cache.InvalidateProfileCache(ctx, p.cacheManager, id)
	}
}

func (p *ProfilePostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.UserProfile, error) {
	if len(ids) == 0 {
		return []*models.UserProfile{}, nil
	}

	var profiles []*models.UserProfile
	if err := p.helpers.getDB(tx).WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, handleDBError(err, "get profiles")
	}
	return profiles, nil
}

func (p *ProfilePostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, profile *models.UserProfile) error {
	err := p.helpers.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "role", "updated_at"}),
		}).
		Create(profile).Error
	if err != nil {
		return handleDBError(err, "upsert profile")
	}

	p.refreshCache(ctx, tx, profile.ID)
	return nil
}

func (p *ProfilePostgreSQL) ListIDs(ctx context.Context, tx *gorm.DB, filters repositories.ProfileFilters) ([]string, error) {
	query := p.helpers.getDB(tx).WithContext(ctx).Model(&models.UserProfile{})
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.Level != nil {
		query = whereLevel(query, *filters.Level)
	}

	var ids []string
	if err := query.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, handleDBError(err, "list profile ids")
	}
	return ids, nil
}

// CompareAndSetLevel is the only write path for a tier.
func (p *ProfilePostgreSQL) CompareAndSetLevel(ctx context.Context, tx *gorm.DB, id string, from, to models.Level, at time.Time) (bool, error) {
	query := p.helpers.getDB(tx).WithContext(ctx).Model(&models.UserProfile{}).Where("id = ?", id)
	query = whereLevel(query, from)

	result := query.Updates(map[string]interface{}{
		"level":            to,
		"level_updated_at": at,
		"updated_at":       at,
	})
	if result.Error != nil {
		return false, handleDBError(result.Error, "update profile level")
	}

	if result.RowsAffected > 0 {
		p.refreshCache(ctx, tx, id)
	}
	return result.RowsAffected > 0, nil
}

func (p *ProfilePostgreSQL) SetOnboardingCompleted(ctx context.Context, tx *gorm.DB, id string, completed bool) error {
	result := p.helpers.getDB(tx).WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", id).
		Update("onboarding_completed", completed)
	if result.Error != nil {
		return handleDBError(result.Error, "update onboarding")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "update onboarding")
	}

	p.refreshCache(ctx, tx, id)
	return nil
}

// whereLevel matches stored tiers the way models.NormalizeLevel reads them:
// corrupt or empty values count as beginner.
func whereLevel(query *gorm.DB, level models.Level) *gorm.DB {
	if models.NormalizeLevel(string(level)) == models.LevelBeginner {
		return query.Where("LOWER(TRIM(COALESCE(level, ''))) NOT IN ?",
			[]string{string(models.LevelIntermediate), string(models.LevelAdvanced)})
	}
	return query.Where("LOWER(TRIM(level)) = ?", string(models.NormalizeLevel(string(level))))
}
