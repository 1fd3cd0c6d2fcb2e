package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Константы статусов викторины. Статус дублирует флаги Started/Ended для списков и фильтров,
// источником истины остаются флаги.
const (
	QuizStatusScheduled  = "scheduled"
	QuizStatusCountdown  = "countdown"
	QuizStatusInProgress = "in_progress"
	QuizStatusCompleted  = "completed"
)

// Процент распределения призового фонда по умолчанию (1, 2, 3 места).
const (
	DefaultPrizeSplitFirst  = 50
	DefaultPrizeSplitSecond = 30
	DefaultPrizeSplitThird  = 20
)

// Quiz представляет сессию викторины
type Quiz struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:100;not null" json:"title"`
	Topic       string `gorm:"size:100;not null;default:''" json:"topic"`
	Difficulty  string `gorm:"size:20;not null;default:''" json:"difficulty"`
	Description string `gorm:"size:500;not null;default:''" json:"description"`

	ScheduledTime      time.Time  `gorm:"not null;index" json:"scheduled_time"`
	CountdownStartedAt *time.Time `json:"countdown_started_at,omitempty"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`

	Status                string `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	Started               bool   `gorm:"not null;default:false" json:"started"`
	Ended                 bool   `gorm:"not null;default:false" json:"ended"`
	StartNotificationSent bool   `gorm:"not null;default:false" json:"-"`

	IsPaid            bool            `gorm:"not null;default:false" json:"is_paid"`
	EntryFee          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"entry_fee"`
	CommissionPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"commission_percent"`
	PrizeSplitFirst   int             `gorm:"not null;default:50" json:"prize_split_first"`
	PrizeSplitSecond  int             `gorm:"not null;default:30" json:"prize_split_second"`
	PrizeSplitThird   int             `gorm:"not null;default:20" json:"prize_split_third"`

	TotalEntryFees decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_entry_fees"`
	Commission     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"commission"`
	PrizePool      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"prize_pool"`
	PrizeFirst     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"prize_first"`
	PrizeSecond    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"prize_second"`
	PrizeThird     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"prize_third"`

	FirstPlaceUserID  *uint `json:"first_place_user_id,omitempty"`
	FirstPlaceScore   int   `gorm:"not null;default:0" json:"first_place_score"`
	SecondPlaceUserID *uint `json:"second_place_user_id,omitempty"`
	SecondPlaceScore  int   `gorm:"not null;default:0" json:"second_place_score"`
	ThirdPlaceUserID  *uint `json:"third_place_user_id,omitempty"`
	ThirdPlaceScore   int   `gorm:"not null;default:0" json:"third_place_score"`

	QuestionCount int        `gorm:"not null;default:0" json:"question_count"`
	Questions     []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// IsActive - викторина идет: старт состоялся, финализации еще не было
func (q *Quiz) IsActive() bool {
	return q.Started && !q.Ended
}

// CountdownAnnounced сообщает, был ли уже объявлен обратный отсчет
func (q *Quiz) CountdownAnnounced() bool {
	return q.CountdownStartedAt != nil
}

// RegistrationDeadline - момент, после которого регистрация закрыта
func (q *Quiz) RegistrationDeadline(cutoff time.Duration) time.Time {
	return q.ScheduledTime.Add(-cutoff)
}

// PrizeSplits возвращает проценты призового фонда для 1-3 мест
func (q *Quiz) PrizeSplits() [3]int {
	return [3]int{q.PrizeSplitFirst, q.PrizeSplitSecond, q.PrizeSplitThird}
}

// PrizeForRank возвращает сумму приза для места (1..3), для остальных - ноль
func (q *Quiz) PrizeForRank(rank int) decimal.Decimal {
	switch rank {
	case 1:
		return q.PrizeFirst
	case 2:
		return q.PrizeSecond
	case 3:
		return q.PrizeThird
	}
	return decimal.Zero
}

// QuestionByID ищет вопрос среди загруженных вопросов викторины
func (q *Quiz) QuestionByID(questionID uint) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// ApplyWinners переносит первые три места итога в викторину
func (q *Quiz) ApplyWinners(outcome *SessionOutcome) {
	if w, ok := outcome.Winner(1); ok {
		id := w.UserID
		q.FirstPlaceUserID, q.FirstPlaceScore = &id, w.FinalScore
	}
	if w, ok := outcome.Winner(2); ok {
		id := w.UserID
		q.SecondPlaceUserID, q.SecondPlaceScore = &id, w.FinalScore
	}
	if w, ok := outcome.Winner(3); ok {
		id := w.UserID
		q.ThirdPlaceUserID, q.ThirdPlaceScore = &id, w.FinalScore
	}
}
