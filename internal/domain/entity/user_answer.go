package entity

import (
	"time"
)

// UserAnswer - единичный ответ пользователя на вопрос. Записи только добавляются.
type UserAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_answer_user_quiz_question" json:"user_id"`
	QuizID         uint      `gorm:"not null;uniqueIndex:idx_answer_user_quiz_question;index" json:"quiz_id"`
	QuestionID     uint      `gorm:"not null;uniqueIndex:idx_answer_user_quiz_question" json:"question_id"`
	SelectedOption *int      `json:"selected_option"` // nil - вопрос пропущен
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	TimeTakenSec   int       `gorm:"not null;default:0" json:"time_taken_sec"`
	Points         int       `gorm:"not null;default:0" json:"points"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (UserAnswer) TableName() string {
	return "user_answers"
}
