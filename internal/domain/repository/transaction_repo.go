package repository

import (
	"context"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// TransactionRepository хранит платежные транзакции, полученные от платежного шлюза
type TransactionRepository interface {
	// Upsert создает транзакцию или обновляет статус существующей (по PaymentID)
	Upsert(ctx context.Context, tx *entity.Transaction) error
	GetByPaymentID(ctx context.Context, paymentID string) (*entity.Transaction, error)
}
