package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// OptionsPerQuestion - у каждого вопроса ровно четыре варианта ответа
const OptionsPerQuestion = 4

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос викторины. После создания викторины вопросы не изменяются.
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	QuizID        uint        `gorm:"not null;index" json:"quiz_id"`
	Position      int         `gorm:"not null;default:0" json:"position"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	Tags          StringArray `gorm:"type:jsonb;not null" json:"tags"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// Validate проверяет вопрос перед сохранением
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("question text is empty")
	}
	if len(q.Options) != OptionsPerQuestion {
		return errors.New("question must have exactly 4 options")
	}
	if !q.IsValidOption(q.CorrectOption) {
		return errors.New("correct option is out of range")
	}
	return nil
}

// IsCorrect проверяет ответ. nil означает, что пользователь не ответил.
func (q *Question) IsCorrect(selectedOption *int) bool {
	return selectedOption != nil && *selectedOption == q.CorrectOption
}

// CalculatePoints рассчитывает очки: basePoints минус потраченные секунды, но не меньше нуля.
// Неправильный ответ (или его отсутствие) дает ноль.
func (q *Question) CalculatePoints(isCorrect bool, timeTakenSec int, basePoints int) int {
	if !isCorrect {
		return 0
	}
	points := basePoints - timeTakenSec
	if points < 0 {
		return 0
	}
	return points
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < OptionsPerQuestion
}
