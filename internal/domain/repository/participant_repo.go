package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// ParticipantRepository определяет методы для работы с регистрациями.
// Create и ConfirmPayment отклоняются с ErrRegistrationClosed, если отсчет уже объявлен:
// проверка выполняется в той же транзакции, что и запись.
type ParticipantRepository interface {
	Create(ctx context.Context, participant *entity.Participant) error
	Get(ctx context.Context, quizID, userID uint) (*entity.Participant, error)
	ListByQuiz(ctx context.Context, quizID uint) ([]entity.Participant, error)
	Delete(ctx context.Context, quizID, userID uint) error
	// ConfirmPayment отмечает оплату. false - оплата уже была подтверждена ранее.
	ConfirmPayment(ctx context.Context, quizID, userID uint, transactionRef string) (bool, error)
	MarkJoined(ctx context.Context, quizID, userID uint, at time.Time) error
	CountPaid(ctx context.Context, quizID uint) (int64, error)
}
