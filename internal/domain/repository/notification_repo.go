package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// NotificationRepository - outbox исходящих уведомлений
type NotificationRepository interface {
	// Create сохраняет уведомление. false - уведомление с таким Key уже существует.
	Create(ctx context.Context, n *entity.Notification) (bool, error)
	MarkSent(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	ListByRecipient(ctx context.Context, userID uint, limit int) ([]entity.Notification, error)
}
