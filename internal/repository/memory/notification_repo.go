package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// NotificationRepo реализует repository.NotificationRepository в памяти
type NotificationRepo struct {
	s *Store
}

// Create сохраняет уведомление, повтор по Key игнорируется
func (r *NotificationRepo) Create(_ context.Context, n *entity.Notification) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, exists := r.s.notifKeys[n.Key]; exists {
		*n = *r.s.notifications[id]
		return false, nil
	}
	r.s.nextNotificationID++
	n.ID = r.s.nextNotificationID
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	c := *n
	r.s.notifications[n.ID] = &c
	r.s.notifKeys[n.Key] = n.ID
	return true, nil
}

// MarkSent отмечает успешную доставку
func (r *NotificationRepo) MarkSent(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	sent := at
	n.Status = entity.NotificationStatusSent
	n.SentAt = &sent
	n.Attempts++
	return nil
}

// MarkFailed фиксирует неудачную попытку доставки
func (r *NotificationRepo) MarkFailed(_ context.Context, id uint, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	n.Status = entity.NotificationStatusFailed
	n.LastError = reason
	n.Attempts++
	return nil
}

// ListByRecipient возвращает последние уведомления пользователя
func (r *NotificationRepo) ListByRecipient(_ context.Context, userID uint, limit int) ([]entity.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []entity.Notification
	for _, n := range r.s.notifications {
		if n.RecipientID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
