package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// TransactionRepo реализует repository.TransactionRepository
type TransactionRepo struct {
	db *gorm.DB
}

// NewTransactionRepo создает новый репозиторий платежей
func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Upsert создает транзакцию или обновляет статус и сумму по payment_id
func (r *TransactionRepo) Upsert(ctx context.Context, tx *entity.Transaction) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "amount", "updated_at"}),
	}).Create(tx).Error
	return wrapErr("upsert transaction", err)
}

// GetByPaymentID возвращает транзакцию по идентификатору платежа
func (r *TransactionRepo) GetByPaymentID(ctx context.Context, paymentID string) (*entity.Transaction, error) {
	var tx entity.Transaction
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&tx).Error; err != nil {
		return nil, wrapErr("get transaction", err)
	}
	return &tx, nil
}
