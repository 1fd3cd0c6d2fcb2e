package entity

import "time"

// Типы уведомлений
const (
	NotificationQuizStarting = "quiz_starting"
	NotificationQuizResults  = "quiz_results"
)

// Статусы доставки уведомления
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification - запись исходящего уведомления (outbox)
type Notification struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Key         string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	RecipientID uint       `gorm:"not null;index" json:"recipient_id"`
	Type        string     `gorm:"size:50;not null" json:"type"`
	Content     string     `gorm:"size:1000;not null" json:"content"`
	Link        string     `gorm:"size:255;not null;default:''" json:"link"`
	Status      string     `gorm:"size:20;not null;default:'pending'" json:"status"`
	Attempts    int        `gorm:"not null;default:0" json:"-"`
	LastError   string     `gorm:"size:500;not null;default:''" json:"-"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Notification) TableName() string {
	return "notifications"
}
