package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/metrics"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
)

// EventNotification - тип WS-события с уведомлением
const EventNotification = "notification"

// UserPusher доставляет событие подключенным клиентам пользователя
type UserPusher interface {
	SendEventToUser(userID uint, eventType string, data interface{}) error
}

// NotificationOptions - параметры очереди уведомлений
type NotificationOptions struct {
	Workers   int
	QueueSize int
	BaseURL   string
}

// NotificationService - асинхронная доставка уведомлений. Notify только ставит задачу
// в очередь; при переполнении уведомление отбрасывается.
type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	pusher   UserPusher
	email    EmailSender // nil - e-mail канал выключен
	clock    clock.Clock
	opts     NotificationOptions

	mu     sync.RWMutex
	closed bool
	queue  chan *entity.Notification
	wg     sync.WaitGroup
}

// NewNotificationService создает сервис уведомлений
func NewNotificationService(
	opts NotificationOptions,
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	pusher UserPusher,
	email EmailSender,
	clk clock.Clock,
) *NotificationService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	return &NotificationService{
		repo:     repo,
		userRepo: userRepo,
		pusher:   pusher,
		email:    email,
		clock:    clk,
		opts:     opts,
		queue:    make(chan *entity.Notification, opts.QueueSize),
	}
}

// Start запускает воркеры доставки
func (s *NotificationService) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	log.Printf("[NotificationService] Запущено воркеров: %d", s.opts.Workers)
}

// Stop закрывает очередь и ждет, пока воркеры доставят оставшееся
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("[NotificationService] Остановлен")
}

// Notify ставит уведомление в очередь. Ключ идемпотентности строится из типа, получателя
// и ссылки, поэтому повтор того же уведомления (с другого инстанса или после рестарта)
// не будет доставлен дважды.
func (s *NotificationService) Notify(recipientID uint, notificationType, content, link string) {
	n := &entity.Notification{
		Key:         notificationKey(recipientID, notificationType, link),
		RecipientID: recipientID,
		Type:        notificationType,
		Content:     content,
		Link:        link,
		Status:      entity.NotificationStatusPending,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		log.Printf("[NotificationService] Очередь закрыта, уведомление %s для #%d отброшено", notificationType, recipientID)
		metrics.NotificationsTotal.WithLabelValues("queue", "dropped").Inc()
		return
	}
	select {
	case s.queue <- n:
	default:
		log.Printf("[NotificationService] Очередь переполнена, уведомление %s для #%d отброшено", notificationType, recipientID)
		metrics.NotificationsTotal.WithLabelValues("queue", "dropped").Inc()
	}
}

// ListForUser возвращает последние уведомления пользователя
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, limit int) ([]entity.Notification, error) {
	if limit < 1 || limit > maxPageSize {
		limit = 20
	}
	return s.repo.ListByRecipient(ctx, userID, limit)
}

func notificationKey(recipientID uint, notificationType, link string) string {
	name := fmt.Sprintf("%s|%d|%s", notificationType, recipientID, link)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (s *NotificationService) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.queue:
			if !ok {
				return
			}
			s.deliver(ctx, n)
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, n *entity.Notification) {
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		log.Printf("[NotificationService] Ошибка сохранения уведомления для #%d: %v", n.RecipientID, err)
		metrics.NotificationsTotal.WithLabelValues("outbox", "error").Inc()
		return
	}
	if !created {
		return
	}

	var failures []string
	if err := s.pusher.SendEventToUser(n.RecipientID, EventNotification, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("websocket", "error").Inc()
		failures = append(failures, "websocket: "+err.Error())
	} else {
		metrics.NotificationsTotal.WithLabelValues("websocket", "ok").Inc()
	}

	if s.email != nil {
		if err := s.sendEmail(ctx, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues("email", "error").Inc()
			failures = append(failures, "email: "+err.Error())
		} else {
			metrics.NotificationsTotal.WithLabelValues("email", "ok").Inc()
		}
	}

	if len(failures) > 0 {
		reason := strings.Join(failures, "; ")
		log.Printf("[NotificationService] Уведомление #%d для #%d доставлено с ошибками: %s", n.ID, n.RecipientID, reason)
		if err := s.repo.MarkFailed(ctx, n.ID, reason); err != nil {
			log.Printf("[NotificationService] Ошибка обновления статуса уведомления #%d: %v", n.ID, err)
		}
		return
	}
	if err := s.repo.MarkSent(ctx, n.ID, s.clock.Now()); err != nil {
		log.Printf("[NotificationService] Ошибка обновления статуса уведомления #%d: %v", n.ID, err)
	}
}

func (s *NotificationService) sendEmail(ctx context.Context, n *entity.Notification) error {
	user, err := s.userRepo.GetByID(ctx, n.RecipientID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return nil
	}
	link := strings.TrimRight(s.opts.BaseURL, "/") + n.Link
	return s.email.SendNotification(ctx, user.Email, subjectFor(n.Type), n.Content, link, n.Key)
}

func subjectFor(notificationType string) string {
	switch notificationType {
	case entity.NotificationQuizStarting:
		return "Викторина скоро начнется"
	case entity.NotificationQuizResults:
		return "Итоги викторины"
	}
	return "Уведомление"
}
