package quizmanager

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/metrics"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// RegistrationGate допускает участников к викторине до закрытия регистрации
type RegistrationGate struct {
	config *Config
	deps   *Dependencies
}

// NewRegistrationGate создает шлюз регистрации
func NewRegistrationGate(config *Config, deps *Dependencies) *RegistrationGate {
	return &RegistrationGate{config: config, deps: deps}
}

// Register регистрирует пользователя. Для бесплатной викторины участие сразу подтверждено.
func (g *RegistrationGate) Register(ctx context.Context, quizID, userID uint) (*entity.Participant, error) {
	quiz, err := g.deps.QuizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := g.deps.Clock.Now()
	if quiz.Started || quiz.Ended || quiz.CountdownAnnounced() ||
		!now.Before(quiz.RegistrationDeadline(g.config.RegistrationCutoff)) {
		metrics.RegistrationsTotal.WithLabelValues("closed").Inc()
		return nil, apperrors.ErrRegistrationClosed
	}

	participant := &entity.Participant{
		QuizID:           quizID,
		UserID:           userID,
		PaymentConfirmed: !quiz.IsPaid,
		RegisteredAt:     now,
	}
	if err := g.deps.ParticipantRepo.Create(ctx, participant); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyRegistered):
			metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		case errors.Is(err, apperrors.ErrRegistrationClosed):
			metrics.RegistrationsTotal.WithLabelValues("closed").Inc()
		default:
			log.Printf("[RegistrationGate] Ошибка регистрации пользователя #%d на викторину #%d: %v", userID, quizID, err)
		}
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	log.Printf("[RegistrationGate] Пользователь #%d зарегистрирован на викторину #%d (оплата подтверждена: %t)",
		userID, quizID, participant.PaymentConfirmed)
	return participant, nil
}

// Unregister отменяет регистрацию до объявления отсчета. Оплаченное участие не отменяется:
// возврат средств выполняет платежный сервис.
func (g *RegistrationGate) Unregister(ctx context.Context, quizID, userID uint) error {
	quiz, err := g.deps.QuizRepo.GetByID(ctx, quizID)
	if err != nil {
		return err
	}
	participant, err := g.participant(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if quiz.IsPaid && participant.PaymentConfirmed {
		return fmt.Errorf("%w: paid registration cannot be cancelled", apperrors.ErrConflict)
	}
	if err := g.deps.ParticipantRepo.Delete(ctx, quizID, userID); err != nil {
		return err
	}
	log.Printf("[RegistrationGate] Пользователь #%d отменил регистрацию на викторину #%d", userID, quizID)
	return nil
}

// ConfirmPayment подтверждает оплату участия по транзакции transactionRef. Транзакция должна
// принадлежать этому пользователю и викторине, быть списанной и покрывать взнос.
// Повторное подтверждение - no-op.
func (g *RegistrationGate) ConfirmPayment(ctx context.Context, quizID, userID uint, transactionRef string) error {
	quiz, err := g.deps.QuizRepo.GetByID(ctx, quizID)
	if err != nil {
		return err
	}
	if !quiz.IsPaid {
		return fmt.Errorf("%w: quiz #%d is free", apperrors.ErrValidation, quizID)
	}
	if _, err := g.participant(ctx, quizID, userID); err != nil {
		return err
	}
	if err := g.checkTransaction(ctx, quiz, userID, transactionRef); err != nil {
		log.Printf("[RegistrationGate] Транзакция %s не подтверждает оплату пользователя #%d для викторины #%d: %v",
			transactionRef, userID, quizID, err)
		return err
	}

	changed, err := g.deps.ParticipantRepo.ConfirmPayment(ctx, quizID, userID, transactionRef)
	if err != nil {
		return err
	}
	if !changed {
		log.Printf("[RegistrationGate] Оплата пользователя #%d для викторины #%d уже подтверждена, транзакция %s пропущена",
			userID, quizID, transactionRef)
		return nil
	}
	log.Printf("[RegistrationGate] Оплата пользователя #%d для викторины #%d подтверждена (%s)", userID, quizID, transactionRef)
	return nil
}

func (g *RegistrationGate) checkTransaction(ctx context.Context, quiz *entity.Quiz, userID uint, ref string) error {
	tx, err := g.deps.TransactionRepo.GetByPaymentID(ctx, ref)
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%w: transaction %q not found", apperrors.ErrValidation, ref)
	}
	if err != nil {
		return err
	}
	if tx.QuizID != quiz.ID || tx.UserID != userID {
		return fmt.Errorf("%w: transaction %q belongs to user #%d, quiz #%d",
			apperrors.ErrConflict, ref, tx.UserID, tx.QuizID)
	}
	if !tx.IsCaptured() {
		return fmt.Errorf("%w: transaction %q is %s", apperrors.ErrValidation, ref, tx.Status)
	}
	if tx.Amount.LessThan(quiz.EntryFee) {
		return fmt.Errorf("%w: transaction %q amount %s is below entry fee %s",
			apperrors.ErrValidation, ref, tx.Amount, quiz.EntryFee)
	}
	return nil
}

// JoinWaitingRoom отмечает участника присутствующим в комнате ожидания
func (g *RegistrationGate) JoinWaitingRoom(ctx context.Context, quizID, userID uint) error {
	quiz, err := g.deps.QuizRepo.GetByID(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.Started || quiz.Ended {
		return apperrors.ErrSessionAlreadyStarted
	}

	participant, err := g.participant(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if !participant.IsPaymentBacked() {
		return apperrors.ErrPaymentRequired
	}
	return g.deps.ParticipantRepo.MarkJoined(ctx, quizID, userID, g.deps.Clock.Now())
}

func (g *RegistrationGate) participant(ctx context.Context, quizID, userID uint) (*entity.Participant, error) {
	p, err := g.deps.ParticipantRepo.Get(ctx, quizID, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrNotParticipant
	}
	return p, err
}
