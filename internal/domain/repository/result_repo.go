package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// RankFunc упорядочивает накопленные записи и заполняет поля ранжирования
type RankFunc func(quiz *entity.Quiz, results []entity.Result) []entity.Result

// ResultRepository определяет методы для работы с ответами и результатами
type ResultRepository interface {
	// SaveAnswer в одной транзакции добавляет ответ и увеличивает счетчики записи участника.
	// Повторный ответ на тот же вопрос - ErrDuplicateAnswer, ответ после финализации - ErrSessionNotActive.
	SaveAnswer(ctx context.Context, answer *entity.UserAnswer) (*entity.Result, error)
	GetUserAnswers(ctx context.Context, quizID, userID uint) ([]entity.UserAnswer, error)
	GetUserResult(ctx context.Context, quizID, userID uint) (*entity.Result, error)
	// GetQuizResults возвращает записи участников, упорядоченные по месту (после финализации)
	GetQuizResults(ctx context.Context, quizID uint) ([]entity.Result, error)
	// FinalizeQuiz под блокировкой строки викторины ранжирует участников, обновляет профили,
	// записывает победителей и последним действием выставляет ended.
	// Для уже завершенной викторины возвращает ErrAlreadyFinalized.
	FinalizeQuiz(ctx context.Context, quizID uint, finalizedAt time.Time, rank RankFunc) (*entity.SessionOutcome, error)
}
