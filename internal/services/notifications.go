package services

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/models"
)

type MarkReadInput struct {
	IDs  []uuid.UUID `json:"ids"`
	Read *bool       `json:"read"`
}

type NotificationService interface {
	ListNotifications(ctx context.Context, id access.Identity, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, id access.Identity) (int64, error)
	MarkRead(ctx context.Context, id access.Identity, ids []uuid.UUID, read bool) (int64, error)
}

type NotificationServiceImpl struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationServiceImpl {
	return &NotificationServiceImpl{db: db}
}

func (s *NotificationServiceImpl) ListNotifications(ctx context.Context, id access.Identity, unreadOnly bool, limit int) ([]models.Notification, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", id.UserID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	notifications := []models.Notification{}
	err := q.Order("created_at DESC").Limit(clampLimit(limit, 50, 200)).Find(&notifications).Error
	return notifications, err
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context, id access.Identity) (int64, error) {
	if err := access.RequireIdentity(id); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ? AND read = ?", id.UserID, false).Count(&count).Error
	return count, err
}

// MarkRead flips the read flag on the caller's notifications. An empty id
// list means all of them. Ids belonging to other users are ignored.
func (s *NotificationServiceImpl) MarkRead(ctx context.Context, id access.Identity, ids []uuid.UUID, read bool) (int64, error) {
	if err := access.RequireIdentity(id); err != nil {
		return 0, err
	}
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", id.UserID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	result := q.Update("read", read)
	return result.RowsAffected, result.Error
}
