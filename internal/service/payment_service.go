package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// PaymentConfirmer подтверждает оплату участия в викторине
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, quizID, userID uint, transactionRef string) error
}

// PaymentWebhook - уведомление платежного шлюза. Подпись проверяется до вызова сервиса.
type PaymentWebhook struct {
	OrderID   string
	PaymentID string
	QuizID    uint
	UserID    uint
	Amount    decimal.Decimal
	Status    string
}

// PaymentService принимает уведомления платежного шлюза
type PaymentService struct {
	txRepo    repository.TransactionRepository
	quizRepo  repository.QuizRepository
	confirmer PaymentConfirmer
}

// NewPaymentService создает сервис платежей
func NewPaymentService(txRepo repository.TransactionRepository, quizRepo repository.QuizRepository, confirmer PaymentConfirmer) *PaymentService {
	return &PaymentService{txRepo: txRepo, quizRepo: quizRepo, confirmer: confirmer}
}

var knownTransactionStatuses = map[string]bool{
	entity.TransactionStatusCreated:  true,
	entity.TransactionStatusCaptured: true,
	entity.TransactionStatusFailed:   true,
	entity.TransactionStatusRefunded: true,
}

// HandleWebhook сохраняет транзакцию и подтверждает участие, если платеж списан.
// Повторная доставка того же уведомления безопасна.
func (s *PaymentService) HandleWebhook(ctx context.Context, w PaymentWebhook) error {
	w.Status = strings.ToLower(strings.TrimSpace(w.Status))
	if strings.TrimSpace(w.PaymentID) == "" {
		return fmt.Errorf("%w: payment_id is required", apperrors.ErrValidation)
	}
	if !knownTransactionStatuses[w.Status] {
		return fmt.Errorf("%w: unknown payment status %q", apperrors.ErrValidation, w.Status)
	}

	quiz, err := s.quizRepo.GetByID(ctx, w.QuizID)
	if err != nil {
		return err
	}
	if !quiz.IsPaid {
		return fmt.Errorf("%w: quiz #%d is free", apperrors.ErrValidation, w.QuizID)
	}

	// Платеж закреплен за пользователем и викториной первого уведомления
	existing, err := s.txRepo.GetByPaymentID(ctx, w.PaymentID)
	switch {
	case err == nil:
		if existing.QuizID != w.QuizID || existing.UserID != w.UserID {
			log.Printf("[PaymentService] Платеж %s принадлежит пользователю #%d (викторина #%d), уведомление для #%d (викторина #%d) отклонено",
				w.PaymentID, existing.UserID, existing.QuizID, w.UserID, w.QuizID)
			return fmt.Errorf("%w: payment %s belongs to another participant", apperrors.ErrConflict, w.PaymentID)
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return err
	}

	tx := &entity.Transaction{
		OrderID:   w.OrderID,
		PaymentID: w.PaymentID,
		QuizID:    w.QuizID,
		UserID:    w.UserID,
		Amount:    w.Amount,
		Status:    w.Status,
	}
	if err := s.txRepo.Upsert(ctx, tx); err != nil {
		return err
	}

	if !tx.IsCaptured() {
		log.Printf("[PaymentService] Платеж %s для викторины #%d в статусе %s, участие не подтверждается",
			w.PaymentID, w.QuizID, w.Status)
		return nil
	}
	if w.Amount.LessThan(quiz.EntryFee) {
		log.Printf("[PaymentService] Платеж %s меньше взноса: %s < %s", w.PaymentID, w.Amount, quiz.EntryFee)
		return fmt.Errorf("%w: amount is below entry fee", apperrors.ErrValidation)
	}

	return s.confirmer.ConfirmPayment(ctx, w.QuizID, w.UserID, w.PaymentID)
}
