package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo создает новый репозиторий регистраций
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// lockOpenQuiz берет FOR SHARE на строку викторины и проверяет, что отсчет не объявлен
func lockOpenQuiz(tx *gorm.DB, quizID uint) error {
	var quiz entity.Quiz
	if err := tx.Clauses(forShare).Select("id", "countdown_started_at", "started", "ended").First(&quiz, quizID).Error; err != nil {
		return err
	}
	if quiz.CountdownStartedAt != nil || quiz.Started || quiz.Ended {
		return apperrors.ErrRegistrationClosed
	}
	return nil
}

// Create регистрирует участника. Дубликат определяется уникальным индексом (quiz_id, user_id).
func (r *ParticipantRepo) Create(ctx context.Context, participant *entity.Participant) error {
	if participant.RegisteredAt.IsZero() {
		participant.RegisteredAt = time.Now()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenQuiz(tx, participant.QuizID); err != nil {
			return err
		}
		if err := tx.Create(participant).Error; err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	return wrapErr("create participant", err)
}

// Get возвращает регистрацию пользователя
func (r *ParticipantRepo) Get(ctx context.Context, quizID, userID uint) (*entity.Participant, error) {
	var p entity.Participant
	err := r.db.WithContext(ctx).Where("quiz_id = ? AND user_id = ?", quizID, userID).First(&p).Error
	if err != nil {
		return nil, wrapErr("get participant", err)
	}
	return &p, nil
}

// ListByQuiz возвращает всех участников викторины
func (r *ParticipantRepo) ListByQuiz(ctx context.Context, quizID uint) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("user_id").Find(&participants).Error
	if err != nil {
		return nil, wrapErr("list participants", err)
	}
	return participants, nil
}

// Delete отменяет регистрацию до объявления отсчета
func (r *ParticipantRepo) Delete(ctx context.Context, quizID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenQuiz(tx, quizID); err != nil {
			return err
		}
		res := tx.Where("quiz_id = ? AND user_id = ?", quizID, userID).Delete(&entity.Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotParticipant
		}
		return nil
	})
	return wrapErr("delete participant", err)
}

// ConfirmPayment отмечает оплату участника. Повторное подтверждение ничего не меняет.
func (r *ParticipantRepo) ConfirmPayment(ctx context.Context, quizID, userID uint, transactionRef string) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p entity.Participant
		if err := tx.Clauses(forUpdate).Where("quiz_id = ? AND user_id = ?", quizID, userID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotParticipant
			}
			return err
		}
		if p.PaymentConfirmed {
			return nil
		}
		if err := lockOpenQuiz(tx, quizID); err != nil {
			return err
		}
		changed = true
		return tx.Model(&p).Updates(map[string]interface{}{
			"payment_confirmed": true,
			"transaction_ref":   transactionRef,
		}).Error
	})
	if err != nil {
		return false, wrapErr("confirm payment", err)
	}
	return changed, nil
}

// MarkJoined отмечает присутствие в комнате ожидания
func (r *ParticipantRepo) MarkJoined(ctx context.Context, quizID, userID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&entity.Participant{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Updates(map[string]interface{}{
			"joined_waiting_room": true,
			"joined_at":           gorm.Expr("COALESCE(joined_at, ?)", at),
		})
	if res.Error != nil {
		return wrapErr("mark joined", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotParticipant
	}
	return nil
}

// CountPaid считает участников с подтвержденной оплатой
func (r *ParticipantRepo) CountPaid(ctx context.Context, quizID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Participant{}).
		Where("quiz_id = ? AND payment_confirmed = ?", quizID, true).
		Count(&n).Error
	return n, wrapErr("count paid participants", err)
}
