package memory

import (
	"context"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// TransactionRepo реализует repository.TransactionRepository в памяти
type TransactionRepo struct {
	s *Store
}

// Upsert создает транзакцию или обновляет статус и сумму существующей
func (r *TransactionRepo) Upsert(_ context.Context, tx *entity.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	if existing, ok := r.s.transactions[tx.PaymentID]; ok {
		existing.Status = tx.Status
		existing.Amount = tx.Amount
		existing.UpdatedAt = now
		*tx = *existing
		return nil
	}
	r.s.nextTransactionID++
	tx.ID = r.s.nextTransactionID
	tx.CreatedAt, tx.UpdatedAt = now, now
	c := *tx
	r.s.transactions[tx.PaymentID] = &c
	return nil
}

// GetByPaymentID возвращает транзакцию по идентификатору платежа
func (r *TransactionRepo) GetByPaymentID(_ context.Context, paymentID string) (*entity.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.transactions[paymentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *t
	return &c, nil
}
