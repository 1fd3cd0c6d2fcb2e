package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// NotificationRepo реализует repository.NotificationRepository
type NotificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo создает outbox уведомлений
func NewNotificationRepo(db *gorm.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create сохраняет уведомление. Повтор по key (ON CONFLICT DO NOTHING) возвращает false.
func (r *NotificationRepo) Create(ctx context.Context, n *entity.Notification) (bool, error) {
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return false, wrapErr("create notification", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkSent отмечает успешную доставку
func (r *NotificationRepo) MarkSent(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":   entity.NotificationStatusSent,
		"sent_at":  at,
		"attempts": gorm.Expr("attempts + 1"),
	}).Error
	return wrapErr("mark notification sent", err)
}

// MarkFailed фиксирует неудачную попытку доставки
func (r *NotificationRepo) MarkFailed(ctx context.Context, id uint, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     entity.NotificationStatusFailed,
		"last_error": reason,
		"attempts":   gorm.Expr("attempts + 1"),
	}).Error
	return wrapErr("mark notification failed", err)
}

// ListByRecipient возвращает последние уведомления пользователя
func (r *NotificationRepo) ListByRecipient(ctx context.Context, userID uint, limit int) ([]entity.Notification, error) {
	var out []entity.Notification
	query := r.db.WithContext(ctx).Where("recipient_id = ?", userID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, wrapErr("list notifications", err)
	}
	return out, nil
}
