package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizRepository
type QuizRepo struct {
	db *gorm.DB
}

// NewQuizRepo создает новый репозиторий викторин
func NewQuizRepo(db *gorm.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// Create создает викторину вместе с вопросами (GORM сохраняет ассоциации в той же транзакции)
func (r *QuizRepo) Create(ctx context.Context, quiz *entity.Quiz) error {
	quiz.QuestionCount = len(quiz.Questions)
	if quiz.Status == "" {
		quiz.Status = entity.QuizStatusScheduled
	}
	return wrapErr("create quiz", r.db.WithContext(ctx).Create(quiz).Error)
}

// GetByID возвращает викторину по ID
func (r *QuizRepo) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	if err := r.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, wrapErr("get quiz", err)
	}
	return &quiz, nil
}

// GetWithQuestions возвращает викторину вместе с вопросами в порядке показа
func (r *QuizRepo) GetWithQuestions(ctx context.Context, id uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&quiz, id).Error
	if err != nil {
		return nil, wrapErr("get quiz with questions", err)
	}
	return &quiz, nil
}

// List возвращает викторины по фильтрам и общее количество
func (r *QuizRepo) List(ctx context.Context, filters repository.QuizFilters, limit, offset int) ([]entity.Quiz, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Quiz{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("scheduled_time >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("scheduled_time <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count quizzes", err)
	}

	var quizzes []entity.Quiz
	err := query.Order("scheduled_time ASC, id ASC").Limit(limit).Offset(offset).Find(&quizzes).Error
	if err != nil {
		return nil, 0, wrapErr("list quizzes", err)
	}
	return quizzes, total, nil
}

// ListUnfinished возвращает викторины с объявленным отсчетом, которые еще не завершены
func (r *QuizRepo) ListUnfinished(ctx context.Context) ([]entity.Quiz, error) {
	var quizzes []entity.Quiz
	err := r.db.WithContext(ctx).
		Where("countdown_started_at IS NOT NULL AND ended = ?", false).
		Order("id").
		Find(&quizzes).Error
	if err != nil {
		return nil, wrapErr("list unfinished quizzes", err)
	}
	return quizzes, nil
}

// AnnounceCountdown под блокировкой строки викторины считает оплативших участников,
// фиксирует призовой фонд и момент объявления отсчета.
// Регистрации берут FOR SHARE на ту же строку, поэтому после объявления новых участников не появится.
func (r *QuizRepo) AnnounceCountdown(ctx context.Context, quizID uint, at time.Time, prize repository.PrizeFunc) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&quiz, quizID).Error; err != nil {
			return err
		}
		if quiz.Started || quiz.Ended {
			return apperrors.ErrSessionAlreadyStarted
		}
		if quiz.CountdownStartedAt != nil {
			return repository.ErrCountdownAlreadyAnnounced
		}

		var paid int64
		if err := tx.Model(&entity.Participant{}).
			Where("quiz_id = ? AND payment_confirmed = ?", quizID, true).
			Count(&paid).Error; err != nil {
			return err
		}

		prize(&quiz, paid).ApplyTo(&quiz)
		announced := at
		quiz.CountdownStartedAt = &announced
		quiz.Status = entity.QuizStatusCountdown

		return tx.Model(&entity.Quiz{}).Where("id = ?", quizID).Updates(map[string]interface{}{
			"countdown_started_at": at,
			"status":               quiz.Status,
			"total_entry_fees":     quiz.TotalEntryFees,
			"commission":           quiz.Commission,
			"prize_pool":           quiz.PrizePool,
			"prize_first":          quiz.PrizeFirst,
			"prize_second":         quiz.PrizeSecond,
			"prize_third":          quiz.PrizeThird,
		}).Error
	})
	if err != nil {
		return &quiz, wrapErr("announce countdown", err)
	}
	return &quiz, nil
}

// MarkStartNotificationSent атомарно переключает флаг рассылки
func (r *QuizRepo) MarkStartNotificationSent(ctx context.Context, quizID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Quiz{}).
		Where("id = ? AND start_notification_sent = ?", quizID, false).
		Update("start_notification_sent", true)
	if res.Error != nil {
		return false, wrapErr("mark start notification", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkStarted атомарно переключает started false→true
func (r *QuizRepo) MarkStarted(ctx context.Context, quizID uint, startedAt, endTime time.Time) error {
	res := r.db.WithContext(ctx).Model(&entity.Quiz{}).
		Where("id = ? AND started = ?", quizID, false).
		Updates(map[string]interface{}{
			"started":           true,
			"actual_start_time": startedAt,
			"end_time":          endTime,
			"status":            entity.QuizStatusInProgress,
		})
	if res.Error != nil {
		return wrapErr("mark started", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, quizID); err != nil {
			return err
		}
		return apperrors.ErrSessionAlreadyStarted
	}
	return nil
}
