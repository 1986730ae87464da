package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/utils"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	BaseRepository[models.Notification]
	ListByUser(ctx context.Context, userID uuid.UUID, isRead *bool, page utils.Page) ([]models.Notification, int64, error)
	// MarkSent flips is_sent once; it reports whether this call made the change.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// MarkRead flips is_read once; it reports whether this call made the change.
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

type notificationRepository struct {
	BaseRepository[models.Notification]
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository[models.Notification](db), db: db}
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, isRead *bool, page utils.Page) ([]models.Notification, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if isRead != nil {
		tx = tx.Where("is_read = ?", *isRead)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count notifications failed")
	}

	var out []models.Notification
	if err := tx.Order("created_at DESC").Offset(page.Skip).Limit(page.Limit).Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list notifications failed")
	}
	return out, total, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_sent = ?", id, false).
		Updates(map[string]any{"is_sent": true, "sent_at": at})
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "mark notification sent failed")
	}
	return res.RowsAffected == 1, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "mark notification read failed")
	}
	return res.RowsAffected == 1, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "mark all notifications read failed")
	}
	return res.RowsAffected, nil
}
