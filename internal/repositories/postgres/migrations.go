package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
)

// Migrate creates or updates the schema and the supporting indexes.
func Migrate(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	db = db.WithContext(ctx)

	logger.Info("Running database migrations")

	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.Course{},
		&models.Lesson{},
		&models.CourseCompletion{},
		&models.Room{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_rooms_participants ON rooms USING GIN (participants)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_seen_by ON messages USING GIN (seen_by)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	removed, remaining, err := ReconcileGlobalRooms(ctx, db)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Warn("Removed empty duplicate global rooms", "removed", removed)
	}

	if remaining == 0 {
		if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_global_name ON rooms (name) WHERE type = 'global'`).Error; err != nil {
			return fmt.Errorf("failed to create global room index: %w", err)
		}
	} else {
		// rooms with history are kept; the oldest row per name stays canonical
		logger.Warn("Duplicate global rooms with messages remain, unique index skipped", "remaining", remaining)
	}

	logger.Info("Database migrations completed")
	return nil
}

// ReconcileGlobalRooms deletes duplicate global rooms that never received a
// message. Readers always resolve the oldest row per name, so duplicates
// holding messages are left in place since a message never changes room.
func ReconcileGlobalRooms(ctx context.Context, db *gorm.DB) (removed int64, remaining int64, err error) {
	const duplicatesQuery = `
WITH ranked AS (
    SELECT id,
           ROW_NUMBER() OVER (PARTITION BY name ORDER BY created_at ASC, id ASC) AS rn
    FROM rooms
    WHERE type = 'global'
)
SELECT id FROM ranked WHERE rn > 1`

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var duplicateIDs []string
		if err := tx.Raw(duplicatesQuery).Scan(&duplicateIDs).Error; err != nil {
			return fmt.Errorf("failed to find duplicate rooms: %w", err)
		}
		if len(duplicateIDs) == 0 {
			return nil
		}

		result := tx.Where("id IN ? AND NOT EXISTS (SELECT 1 FROM messages m WHERE m.room_id = rooms.id)", duplicateIDs).
			Delete(&models.Room{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete duplicate rooms: %w", result.Error)
		}

		removed = result.RowsAffected
		remaining = int64(len(duplicateIDs)) - removed
		return nil
	})

	return removed, remaining, err
}
