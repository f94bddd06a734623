package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/cache"
	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

type RoomPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewRoomPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.RoomRepository {
	return &RoomPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *RoomPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Room, error) {
	var room models.Room
	if err := r.helpers.getDB(tx).WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get room")
	}
	return &room, nil
}

// FindGlobalByName caches the canonical room. Only the id is stable, so
// activity fields are re-read from the store on a cache hit.
func (r *RoomPostgreSQL) FindGlobalByName(ctx context.Context, tx *gorm.DB, name string) (*models.Room, error) {
	if id, err := r.cacheManager.Room.GetString(ctx, cache.GlobalRoomKey(name)); err == nil {
		if room, err := r.GetByID(ctx, tx, id); err == nil {
			return room, nil
		}
		cache.SafeDelete(ctx, r.cacheManager.Room, cache.GlobalRoomKey(name))
	}

	var room models.Room
	err := r.helpers.getDB(tx).WithContext(ctx).
		Where("type = ? AND name = ?", models.RoomGlobal, name).
		Order("created_at ASC").Order("id ASC").
		First(&room).Error
	if err != nil {
		return nil, handleDBError(err, "find global room")
	}

	if err := r.cacheManager.Room.SetString(ctx, cache.GlobalRoomKey(name), room.ID, cache.RoomCacheConfig.TTL); err != nil {
		slog.WarnContext(ctx, "Failed to cache global room", "error", err, "name", name)
	}
	return &room, nil
}

// CreateGlobalIfAbsent relies on the partial unique index on global room
// names when present; without it a concurrent race may leave a duplicate,
// which readers ignore by always picking the oldest row.
func (r *RoomPostgreSQL) CreateGlobalIfAbsent(ctx context.Context, tx *gorm.DB, name string) (*models.Room, error) {
	now := time.Now().UTC()
	err := r.helpers.getDB(tx).WithContext(ctx).Exec(
		`INSERT INTO rooms (id, name, type, participants, created_at, updated_at)
		 VALUES (?, ?, ?, '[]'::jsonb, ?, ?)
		 ON CONFLICT DO NOTHING`,
		uuid.NewString(), name, models.RoomGlobal, now, now,
	).Error
	if err != nil {
		return nil, handleDBError(err, "create global room")
	}

	return r.FindGlobalByName(ctx, tx, name)
}

func (r *RoomPostgreSQL) ListDirectFor(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.helpers.getDB(tx).WithContext(ctx).
		Where("type = ? AND jsonb_exists(participants, ?)", models.RoomDirect, userID).
		Order("last_activity_at DESC NULLS LAST").
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, handleDBError(err, "list direct rooms")
	}
	return rooms, nil
}

func (r *RoomPostgreSQL) Create(ctx context.Context, tx *gorm.DB, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if err := r.helpers.getDB(tx).WithContext(ctx).Create(room).Error; err != nil {
		return handleDBError(err, "create room")
	}
	return nil
}

func (r *RoomPostgreSQL) TouchActivity(ctx context.Context, tx *gorm.DB, id string, at time.Time) error {
	err := r.helpers.getDB(tx).WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_activity_at": at, "updated_at": at}).Error
	return handleDBError(err, "touch room activity")
}
