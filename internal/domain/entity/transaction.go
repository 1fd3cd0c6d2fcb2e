package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы платежной транзакции, приходящие от платежного шлюза
const (
	TransactionStatusCreated  = "created"
	TransactionStatusCaptured = "captured"
	TransactionStatusFailed   = "failed"
	TransactionStatusRefunded = "refunded"
)

// Transaction - запись о платеже за участие. Ref (PaymentID) - ссылка, по которой
// подтверждается оплата участника.
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   string          `gorm:"size:100;not null;index" json:"order_id"`
	PaymentID string          `gorm:"size:100;not null;uniqueIndex" json:"payment_id"`
	QuizID    uint            `gorm:"not null;index" json:"quiz_id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status    string          `gorm:"size:20;not null" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Transaction) TableName() string {
	return "transactions"
}

// IsCaptured - платеж успешно списан
func (t *Transaction) IsCaptured() bool {
	return t.Status == TransactionStatusCaptured
}
