package quizmanager

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// Типы событий, рассылаемых клиентам викторины
const (
	EventCountdownStarted = "quiz:countdown_started"
	EventQuestion         = "quiz:question"
	EventShowLeaderboard  = "quiz:show_leaderboard"
	EventEnded            = "quiz:ended"
	EventAnswerResult     = "quiz:answer_result"
)

// CountdownStartedEvent - объявлен обратный отсчет
type CountdownStartedEvent struct {
	QuizID           uint            `json:"quiz_id"`
	StartTime        time.Time       `json:"start_time"`
	CountdownSeconds int             `json:"countdown_seconds"`
	PrizePool        decimal.Decimal `json:"prize_pool"`
}

// QuestionEvent - очередной вопрос. Правильный ответ не передается.
type QuestionEvent struct {
	QuizID      uint      `json:"quiz_id"`
	QuestionID  uint      `json:"question_id"`
	Number      int       `json:"number"`
	Total       int       `json:"total"`
	Text        string    `json:"text"`
	Options     []string  `json:"options"`
	DurationSec int       `json:"duration_sec"`
	SentAt      time.Time `json:"sent_at"`
}

// LeaderboardEntry - строка итоговой таблицы
type LeaderboardEntry struct {
	UserID         uint            `json:"user_id"`
	Rank           int             `json:"rank"`
	FinalScore     int             `json:"final_score"`
	CorrectAnswers int             `json:"correct_answers"`
	TotalTimeTaken int             `json:"total_time_taken"`
	PrizeAmount    decimal.Decimal `json:"prize_amount"`
}

// LeaderboardEvent - показать итоговую таблицу
type LeaderboardEvent struct {
	QuizID            uint               `json:"quiz_id"`
	Entries           []LeaderboardEntry `json:"entries"`
	TotalParticipants int                `json:"total_participants"`
}

// EndedEvent - викторина завершена
type EndedEvent struct {
	QuizID  uint      `json:"quiz_id"`
	EndedAt time.Time `json:"ended_at"`
	Trigger string    `json:"trigger"`
}

// AnswerResultEvent - результат ответа, отправляется только автору ответа
type AnswerResultEvent struct {
	QuizID            uint `json:"quiz_id"`
	QuestionID        uint `json:"question_id"`
	IsCorrect         bool `json:"is_correct"`
	Points            int  `json:"points"`
	TotalScore        int  `json:"total_score"`
	QuestionsAnswered int  `json:"questions_answered"`
}

// NewLeaderboardEntry строит строку таблицы из записи участника
func NewLeaderboardEntry(r *entity.Result) LeaderboardEntry {
	return LeaderboardEntry{
		UserID:         r.UserID,
		Rank:           r.Rank,
		FinalScore:     r.FinalScore,
		CorrectAnswers: r.CorrectAnswers,
		TotalTimeTaken: r.TotalTimeTaken,
		PrizeAmount:    r.PrizeAmount,
	}
}
