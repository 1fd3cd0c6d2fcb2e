package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Result - накопительная запись участника в викторине. Счетчики обновляются при каждом ответе,
// поля ранжирования заполняются один раз при финализации.
type Result struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;index;uniqueIndex:idx_user_quiz" json:"user_id"`
	QuizID            uint            `gorm:"not null;index;uniqueIndex:idx_user_quiz" json:"quiz_id"`
	TotalScore        int             `gorm:"not null;default:0" json:"total_score"`
	QuestionsAnswered int             `gorm:"not null;default:0" json:"questions_answered"`
	CorrectAnswers    int             `gorm:"not null;default:0" json:"correct_answers"`
	TotalTimeTaken    int             `gorm:"not null;default:0" json:"total_time_taken"`
	Rank              int             `gorm:"not null;default:0;index:idx_quiz_rank" json:"rank"`
	AdditionalPoints  int             `gorm:"not null;default:0" json:"additional_points"`
	FinalScore        int             `gorm:"not null;default:0" json:"final_score"`
	PrizeAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"prize_amount"`
	IsWinner          bool            `gorm:"not null;default:false" json:"is_winner"`
	FinalizedAt       *time.Time      `json:"finalized_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Result) TableName() string {
	return "results"
}

// SessionOutcome - все, что финализатор записывает одной транзакцией
type SessionOutcome struct {
	QuizID      uint
	Standings   []Result // отсортированы по Rank
	FinalizedAt time.Time
}

// Winner возвращает участника на месте rank (1..3), если такое место занято
func (o *SessionOutcome) Winner(rank int) (*Result, bool) {
	if rank < 1 || rank > len(o.Standings) || rank > 3 {
		return nil, false
	}
	return &o.Standings[rank-1], true
}
