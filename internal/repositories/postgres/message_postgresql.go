package postgres

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/community-service/internal/cache"
	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

type MessagePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewMessagePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.MessageRepository {
	return &MessagePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC OPERATIONS =====

func (m *MessagePostgreSQL) Create(ctx context.Context, tx *gorm.DB, message *models.Message) error {
	if message.ID == "" {
		message.ID = models.NewMessageID()
	}
	if err := m.helpers.getDB(tx).WithContext(ctx).Create(message).Error; err != nil {
		return handleDBError(err, "create message")
	}

	cache.InvalidateUnread(ctx, m.cacheManager, message.RoomID)
	return nil
}

func (m *MessagePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Message, error) {
	var message models.Message
	if err := m.helpers.getDB(tx).WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get message")
	}
	return &message, nil
}

func (m *MessagePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	var deleted models.Message
	result := m.helpers.getDB(tx).WithContext(ctx).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "room_id"}}}).
		Where("id = ?", id).
		Delete(&deleted)
	if result.Error != nil {
		return handleDBError(result.Error, "delete message")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete message")
	}

	cache.InvalidateUnread(ctx, m.cacheManager, deleted.RoomID)
	return nil
}

// ===== QUERY OPERATIONS =====

func (m *MessagePostgreSQL) ListByRoom(ctx context.Context, tx *gorm.DB, roomID string, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message

	query := m.helpers.getDB(tx).WithContext(ctx).Where("room_id = ?", roomID)
	query = m.helpers.ApplyPaginationAndSort(query, "created_at", "desc", limit, offset)

	if err := query.Find(&messages).Error; err != nil {
		return nil, handleDBError(err, "list messages")
	}
	return messages, nil
}

func (m *MessagePostgreSQL) ListAllByRoom(ctx context.Context, tx *gorm.DB, roomID string) ([]*models.Message, error) {
	var messages []*models.Message

	query := m.helpers.getDB(tx).WithContext(ctx).Where("room_id = ?", roomID)
	query = m.helpers.ApplyPaginationAndSort(query, "created_at", "asc", 0, 0)

	if err := query.Find(&messages).Error; err != nil {
		return nil, handleDBError(err, "list room history")
	}
	return messages, nil
}

func (m *MessagePostgreSQL) LatestInRoom(ctx context.Context, tx *gorm.DB, roomID string) (*models.Message, error) {
	var message models.Message
	err := m.helpers.getDB(tx).WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").Order("id DESC").
		First(&message).Error
	if err != nil {
		return nil, handleDBError(err, "get latest message")
	}
	return &message, nil
}

func (m *MessagePostgreSQL) CountUnread(ctx context.Context, tx *gorm.DB, roomID, userID string) (int64, error) {
	var count int64
	err := m.cacheManager.Stats.CacheOrExecute(ctx, cache.UnreadKey(roomID, userID), &count, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var dbCount int64
		err := m.helpers.getDB(tx).WithContext(ctx).
			Model(&models.Message{}).
			Where("room_id = ? AND sender_id <> ? AND NOT jsonb_exists(seen_by, ?)", roomID, userID, userID).
			Count(&dbCount).Error
		if err != nil {
			return nil, handleDBError(err, "count unread messages")
		}
		return dbCount, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ===== ATOMIC UPDATES =====

// The CASE runs against the row as locked by the UPDATE, so two concurrent
// toggles of different pairs cannot overwrite each other.
const toggleReactionQuery = `
UPDATE messages SET reactions = CASE
    WHEN EXISTS (
        SELECT 1 FROM jsonb_array_elements(reactions) r
        WHERE r->>'emoji' = CAST(@emoji AS text) AND r->>'userId' = CAST(@user AS text)
    )
    THEN (
        SELECT COALESCE(jsonb_agg(r), '[]'::jsonb)
        FROM jsonb_array_elements(reactions) r
        WHERE NOT (r->>'emoji' = CAST(@emoji AS text) AND r->>'userId' = CAST(@user AS text))
    )
    ELSE reactions || jsonb_build_array(jsonb_build_object(
        'emoji', CAST(@emoji AS text),
        'userId', CAST(@user AS text),
        'userName', CAST(@name AS text)))
END
WHERE id = @id
RETURNING reactions`

func (m *MessagePostgreSQL) ToggleReaction(ctx context.Context, tx *gorm.DB, messageID string, reaction models.Reaction) ([]models.Reaction, error) {
	var rows []struct {
		Reactions datatypes.JSONSlice[models.Reaction]
	}

	err := m.helpers.getDB(tx).WithContext(ctx).
		Raw(toggleReactionQuery, map[string]interface{}{
			"id":    messageID,
			"emoji": reaction.Emoji,
			"user":  reaction.UserID,
			"name":  reaction.UserName,
		}).
		Scan(&rows).Error
	if err != nil {
		return nil, handleDBError(err, "toggle reaction")
	}
	if len(rows) == 0 {
		return nil, handleDBError(gorm.ErrRecordNotFound, "toggle reaction")
	}

	return []models.Reaction(rows[0].Reactions), nil
}

func (m *MessagePostgreSQL) MarkRoomSeen(ctx context.Context, tx *gorm.DB, roomID, userID string) (int64, error) {
	result := m.helpers.getDB(tx).WithContext(ctx).
		Model(&models.Message{}).
		Where("room_id = ? AND NOT jsonb_exists(seen_by, ?)", roomID, userID).
		Update("seen_by", gorm.Expr("seen_by || jsonb_build_array(CAST(? AS text))", userID))
	if result.Error != nil {
		return 0, handleDBError(result.Error, "mark room seen")
	}

	if result.RowsAffected > 0 {
		cache.SafeDelete(ctx, m.cacheManager.Stats, cache.UnreadKey(roomID, userID))
	}
	return result.RowsAffected, nil
}
