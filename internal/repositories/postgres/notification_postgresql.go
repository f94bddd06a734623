package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

const notificationBatchSize = 200

type NotificationPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewNotificationPostgreSQL(db *gorm.DB) repositories.NotificationRepository {
	return &NotificationPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (n *NotificationPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	for _, notification := range notifications {
		if notification.ID == "" {
			notification.ID = uuid.NewString()
		}
	}

	if err := n.helpers.getDB(tx).WithContext(ctx).CreateInBatches(notifications, notificationBatchSize).Error; err != nil {
		return handleDBError(err, "create notifications")
	}
	return nil
}

func (n *NotificationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := n.helpers.getDB(tx).WithContext(ctx).First(&notification, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get notification")
	}
	return &notification, nil
}

// scope restricts a query to what the recipient may read: their own records
// plus legacy broadcast records that carry only a role target.
func (n *NotificationPostgreSQL) scope(query *gorm.DB, recipient repositories.NotificationRecipient) *gorm.DB {
	return query.Where(
		"((user_id = ?) OR (user_id IS NULL AND role_target IN ?))",
		recipient.UserID,
		[]string{string(recipient.Role), string(models.TargetAll)},
	)
}

func (n *NotificationPostgreSQL) ListFor(ctx context.Context, tx *gorm.DB, recipient repositories.NotificationRecipient, filters repositories.NotificationFilters) ([]*models.Notification, int64, error) {
	var notifications []*models.Notification
	var total int64

	query := n.scope(n.helpers.getDB(tx).WithContext(ctx).Model(&models.Notification{}), recipient)
	if filters.UnreadOnly {
		query = query.Where("read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count notifications")
	}

	query = n.helpers.ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, handleDBError(err, "list notifications")
	}

	return notifications, total, nil
}

func (n *NotificationPostgreSQL) CountUnreadFor(ctx context.Context, tx *gorm.DB, recipient repositories.NotificationRecipient) (int64, error) {
	var count int64
	query := n.scope(n.helpers.getDB(tx).WithContext(ctx).Model(&models.Notification{}), recipient)
	if err := query.Where("read = ?", false).Count(&count).Error; err != nil {
		return 0, handleDBError(err, "count unread notifications")
	}
	return count, nil
}

func (n *NotificationPostgreSQL) MarkRead(ctx context.Context, tx *gorm.DB, id string, recipient repositories.NotificationRecipient) (bool, error) {
	query := n.helpers.getDB(tx).WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id)
	result := n.scope(query, recipient).Update("read", true)
	if result.Error != nil {
		return false, handleDBError(result.Error, "mark notification read")
	}
	return result.RowsAffected > 0, nil
}

func (n *NotificationPostgreSQL) MarkAllRead(ctx context.Context, tx *gorm.DB, recipient repositories.NotificationRecipient) (int64, error) {
	query := n.helpers.getDB(tx).WithContext(ctx).Model(&models.Notification{}).Where("read = ?", false)
	result := n.scope(query, recipient).Update("read", true)
	if result.Error != nil {
		return 0, handleDBError(result.Error, "mark all notifications read")
	}
	return result.RowsAffected, nil
}
