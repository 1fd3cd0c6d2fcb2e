package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository
type ResultRepo struct {
	db *gorm.DB
}

// NewResultRepo создает новый репозиторий результатов
func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveAnswer вставляет ответ и инкрементирует накопительную запись в одной транзакции.
// FOR SHARE на строку викторины не дает ответу проскочить параллельно с финализацией.
func (r *ResultRepo) SaveAnswer(ctx context.Context, answer *entity.UserAnswer) (*entity.Result, error) {
	var result entity.Result
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz entity.Quiz
		if err := tx.Clauses(forShare).Select("id", "started", "ended").First(&quiz, answer.QuizID).Error; err != nil {
			return err
		}
		if !quiz.Started || quiz.Ended {
			return apperrors.ErrSessionNotActive
		}

		if err := tx.Create(answer).Error; err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrDuplicateAnswer
			}
			return err
		}

		correct := 0
		if answer.IsCorrect {
			correct = 1
		}
		initial := entity.Result{
			QuizID:            answer.QuizID,
			UserID:            answer.UserID,
			TotalScore:        answer.Points,
			QuestionsAnswered: 1,
			CorrectAnswers:    correct,
			TotalTimeTaken:    answer.TimeTakenSec,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_score":        gorm.Expr("results.total_score + ?", answer.Points),
				"questions_answered": gorm.Expr("results.questions_answered + 1"),
				"correct_answers":    gorm.Expr("results.correct_answers + ?", correct),
				"total_time_taken":   gorm.Expr("results.total_time_taken + ?", answer.TimeTakenSec),
				"updated_at":         gorm.Expr("NOW()"),
			}),
		}).Create(&initial).Error
		if err != nil {
			return err
		}

		return tx.Where("quiz_id = ? AND user_id = ?", answer.QuizID, answer.UserID).First(&result).Error
	})
	if err != nil {
		return nil, wrapErr("save answer", err)
	}
	return &result, nil
}

// GetUserAnswers возвращает ответы пользователя в порядке поступления
func (r *ResultRepo) GetUserAnswers(ctx context.Context, quizID, userID uint) ([]entity.UserAnswer, error) {
	var answers []entity.UserAnswer
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("id").
		Find(&answers).Error
	if err != nil {
		return nil, wrapErr("get user answers", err)
	}
	return answers, nil
}

// GetUserResult возвращает накопительную запись участника
func (r *ResultRepo) GetUserResult(ctx context.Context, quizID, userID uint) (*entity.Result, error) {
	var result entity.Result
	err := r.db.WithContext(ctx).Where("quiz_id = ? AND user_id = ?", quizID, userID).First(&result).Error
	if err != nil {
		return nil, wrapErr("get user result", err)
	}
	return &result, nil
}

// GetQuizResults возвращает записи участников по месту
func (r *ResultRepo) GetQuizResults(ctx context.Context, quizID uint) ([]entity.Result, error) {
	var results []entity.Result
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("rank ASC, user_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, wrapErr("get quiz results", err)
	}
	return results, nil
}

// FinalizeQuiz выполняет финализацию одной транзакцией. Повторный вызов видит ended=true
// под той же блокировкой и возвращает ErrAlreadyFinalized.
func (r *ResultRepo) FinalizeQuiz(ctx context.Context, quizID uint, finalizedAt time.Time, rank repository.RankFunc) (*entity.SessionOutcome, error) {
	var outcome *entity.SessionOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz entity.Quiz
		if err := tx.Clauses(forUpdate).First(&quiz, quizID).Error; err != nil {
			return err
		}
		if quiz.Ended {
			return apperrors.ErrAlreadyFinalized
		}

		var results []entity.Result
		if err := tx.Clauses(forUpdate).Where("quiz_id = ?", quizID).Order("user_id").Find(&results).Error; err != nil {
			return err
		}

		standings := rank(&quiz, results)
		for i := range standings {
			st := &standings[i]
			at := finalizedAt
			st.FinalizedAt = &at
			if err := tx.Model(&entity.Result{}).Where("id = ?", st.ID).Updates(map[string]interface{}{
				"rank":              st.Rank,
				"additional_points": st.AdditionalPoints,
				"final_score":       st.FinalScore,
				"prize_amount":      st.PrizeAmount,
				"is_winner":         st.IsWinner,
				"finalized_at":      finalizedAt,
			}).Error; err != nil {
				return err
			}
			if err := applyToUser(tx, st); err != nil {
				return fmt.Errorf("update user %d: %w", st.UserID, err)
			}
		}

		outcome = &entity.SessionOutcome{QuizID: quizID, Standings: standings, FinalizedAt: finalizedAt}
		quiz.ApplyWinners(outcome)

		// ended выставляется последним изменением транзакции
		return tx.Model(&entity.Quiz{}).Where("id = ?", quizID).Updates(map[string]interface{}{
			"first_place_user_id":  quiz.FirstPlaceUserID,
			"first_place_score":    quiz.FirstPlaceScore,
			"second_place_user_id": quiz.SecondPlaceUserID,
			"second_place_score":   quiz.SecondPlaceScore,
			"third_place_user_id":  quiz.ThirdPlaceUserID,
			"third_place_score":    quiz.ThirdPlaceScore,
			"status":               entity.QuizStatusCompleted,
			"ended_at":             finalizedAt,
			"ended":                true,
		}).Error
	})
	if err != nil {
		return nil, wrapErr("finalize quiz", err)
	}
	return outcome, nil
}

// applyToUser обновляет показатели и уровень пользователя под блокировкой строки.
// Профиль, которого еще нет в локальной копии, создается.
func applyToUser(tx *gorm.DB, st *entity.Result) error {
	var user entity.User
	err := tx.Clauses(forUpdate).First(&user, st.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = entity.User{ID: st.UserID, Username: fmt.Sprintf("user_%d", st.UserID)}
		user.ApplyResult(st)
		return tx.Create(&user).Error
	}
	if err != nil {
		return err
	}

	user.ApplyResult(st)
	return tx.Model(&user).
		Select("cumulative_score", "level", "games_played", "highest_score", "wins_count", "total_prize_won").
		Updates(&user).Error
}
