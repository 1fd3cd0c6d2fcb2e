package entity

import "time"

// Participant - регистрация пользователя на викторину
type Participant struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	QuizID            uint       `gorm:"not null;uniqueIndex:idx_participant_quiz_user" json:"quiz_id"`
	UserID            uint       `gorm:"not null;uniqueIndex:idx_participant_quiz_user;index" json:"user_id"`
	PaymentConfirmed  bool       `gorm:"not null;default:false" json:"payment_confirmed"`
	TransactionRef    string     `gorm:"size:100;not null;default:''" json:"-"`
	JoinedWaitingRoom bool       `gorm:"not null;default:false" json:"joined_waiting_room"`
	JoinedAt          *time.Time `json:"joined_at,omitempty"`
	RegisteredAt      time.Time  `gorm:"not null" json:"registered_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "participants"
}

// IsPaymentBacked - участник может играть: оплата подтверждена (для бесплатных викторин выставляется при регистрации)
func (p *Participant) IsPaymentBacked() bool {
	return p.PaymentConfirmed
}

// IsEligibleForCompletion - участник учитывается при проверке "все ответили"
func (p *Participant) IsEligibleForCompletion() bool {
	return p.PaymentConfirmed && p.JoinedWaitingRoom
}
