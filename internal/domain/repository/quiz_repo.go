package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// QuizFilters определяет фильтры для списка викторин
type QuizFilters struct {
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// PrizeFunc считает призовой фонд по числу оплативших участников на момент объявления отсчета
type PrizeFunc func(quiz *entity.Quiz, paidCount int64) entity.PrizeDistribution

// QuizRepository определяет методы для работы с викторинами
type QuizRepository interface {
	// Create сохраняет викторину вместе с вопросами
	Create(ctx context.Context, quiz *entity.Quiz) error
	GetByID(ctx context.Context, id uint) (*entity.Quiz, error)
	// GetWithQuestions возвращает викторину с вопросами, упорядоченными по Position
	GetWithQuestions(ctx context.Context, id uint) (*entity.Quiz, error)
	List(ctx context.Context, filters QuizFilters, limit, offset int) ([]entity.Quiz, int64, error)
	// ListUnfinished возвращает викторины с объявленным отсчетом, которые еще не завершены
	ListUnfinished(ctx context.Context) ([]entity.Quiz, error)
	// AnnounceCountdown атомарно фиксирует объявление отсчета и призовой фонд.
	// Возвращает ErrCountdownAlreadyAnnounced, если отсчет уже объявлен,
	// и ErrSessionAlreadyStarted, если викторина уже идет или завершена.
	AnnounceCountdown(ctx context.Context, quizID uint, at time.Time, prize PrizeFunc) (*entity.Quiz, error)
	// MarkStartNotificationSent переключает флаг false→true. true - переключил именно этот вызов.
	MarkStartNotificationSent(ctx context.Context, quizID uint) (bool, error)
	// MarkStarted переключает started false→true и фиксирует время старта и окончания.
	// Возвращает ErrSessionAlreadyStarted, если флаг уже выставлен.
	MarkStarted(ctx context.Context, quizID uint, startedAt, endTime time.Time) error
}
