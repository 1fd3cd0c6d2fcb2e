package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/handler/helper"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
)

// QuestionResponse представляет вопрос в формате для ответа клиенту.
// Правильный ответ никогда не попадает в ответ.
type QuestionResponse struct {
	ID       uint                    `json:"id"`
	QuizID   uint                    `json:"quiz_id"`
	Position int                     `json:"position"`
	Text     string                  `json:"text"`
	Options  []helper.QuestionOption `json:"options"`
}

// PrizeResponse - призовой фонд платной викторины
type PrizeResponse struct {
	EntryFee       decimal.Decimal `json:"entry_fee"`
	TotalEntryFees decimal.Decimal `json:"total_entry_fees"`
	Commission     decimal.Decimal `json:"commission"`
	PrizePool      decimal.Decimal `json:"prize_pool"`
	PrizeFirst     decimal.Decimal `json:"prize_first"`
	PrizeSecond    decimal.Decimal `json:"prize_second"`
	PrizeThird     decimal.Decimal `json:"prize_third"`
	Splits         [3]int          `json:"splits"`
}

// QuizResponse представляет викторину в формате для ответа клиенту
type QuizResponse struct {
	ID                 uint               `json:"id"`
	Title              string             `json:"title"`
	Topic              string             `json:"topic,omitempty"`
	Difficulty         string             `json:"difficulty,omitempty"`
	Description        string             `json:"description,omitempty"`
	ScheduledTime      time.Time          `json:"scheduled_time"`
	CountdownStartedAt *time.Time         `json:"countdown_started_at,omitempty"`
	ActualStartTime    *time.Time         `json:"actual_start_time,omitempty"`
	EndedAt            *time.Time         `json:"ended_at,omitempty"`
	Status             string             `json:"status"`
	IsPaid             bool               `json:"is_paid"`
	Prize              *PrizeResponse     `json:"prize,omitempty"`
	QuestionCount      int                `json:"question_count"`
	Questions          []QuestionResponse `json:"questions,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// ResultResponse - строка итоговой таблицы
type ResultResponse struct {
	UserID           uint            `json:"user_id"`
	Rank             int             `json:"rank"`
	TotalScore       int             `json:"total_score"`
	AdditionalPoints int             `json:"additional_points"`
	FinalScore       int             `json:"final_score"`
	CorrectAnswers   int             `json:"correct_answers"`
	TotalTimeTaken   int             `json:"total_time_taken"`
	IsWinner         bool            `json:"is_winner"`
	PrizeAmount      decimal.Decimal `json:"prize_amount"`
}

// ParticipantResponse - регистрация пользователя на викторину
type ParticipantResponse struct {
	QuizID            uint      `json:"quiz_id"`
	UserID            uint      `json:"user_id"`
	PaymentConfirmed  bool      `json:"payment_confirmed"`
	JoinedWaitingRoom bool      `json:"joined_waiting_room"`
	RegisteredAt      time.Time `json:"registered_at"`
}

// StartQuizResponse - ответ на запуск викторины
type StartQuizResponse struct {
	QuizID    uint      `json:"quiz_id"`
	StartTime time.Time `json:"start_time"`
	State     string    `json:"state,omitempty"`
}

// PaginatedQuizResponse - страница списка викторин
type PaginatedQuizResponse struct {
	Quizzes []*QuizResponse `json:"quizzes"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:       q.ID,
		QuizID:   q.QuizID,
		Position: q.Position,
		Text:     q.Text,
		Options:  helper.ConvertOptionsToObjects(q.Options),
	}
}

// NewQuizResponse создает DTO для викторины
func NewQuizResponse(quiz *entity.Quiz, includeQuestions bool) *QuizResponse {
	if quiz == nil {
		return nil
	}

	var questionsDTO []QuestionResponse
	if includeQuestions {
		questionsDTO = make([]QuestionResponse, len(quiz.Questions))
		for i := range quiz.Questions {
			questionsDTO[i] = NewQuestionResponse(&quiz.Questions[i])
		}
	}

	resp := &QuizResponse{
		ID:                 quiz.ID,
		Title:              quiz.Title,
		Topic:              quiz.Topic,
		Difficulty:         quiz.Difficulty,
		Description:        quiz.Description,
		ScheduledTime:      quiz.ScheduledTime,
		CountdownStartedAt: quiz.CountdownStartedAt,
		ActualStartTime:    quiz.ActualStartTime,
		EndedAt:            quiz.EndedAt,
		Status:             quiz.Status,
		IsPaid:             quiz.IsPaid,
		QuestionCount:      quiz.QuestionCount,
		Questions:          questionsDTO,
		CreatedAt:          quiz.CreatedAt,
	}
	if quiz.IsPaid {
		resp.Prize = &PrizeResponse{
			EntryFee:       quiz.EntryFee,
			TotalEntryFees: quiz.TotalEntryFees,
			Commission:     quiz.Commission,
			PrizePool:      quiz.PrizePool,
			PrizeFirst:     quiz.PrizeFirst,
			PrizeSecond:    quiz.PrizeSecond,
			PrizeThird:     quiz.PrizeThird,
			Splits:         quiz.PrizeSplits(),
		}
	}
	return resp
}

// NewListQuizResponse создает слайс DTO для списка викторин
func NewListQuizResponse(quizzes []entity.Quiz) []*QuizResponse {
	list := make([]*QuizResponse, len(quizzes))
	for i := range quizzes {
		// Вопросы в список не включаются
		list[i] = NewQuizResponse(&quizzes[i], false)
	}
	return list
}

// NewPaginatedQuizResponse создает DTO для страницы викторин
func NewPaginatedQuizResponse(quizzes []entity.Quiz, total int64, page, perPage int) *PaginatedQuizResponse {
	return &PaginatedQuizResponse{
		Quizzes: NewListQuizResponse(quizzes),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
}

// NewResultResponse создает DTO для результата
func NewResultResponse(result *entity.Result) *ResultResponse {
	if result == nil {
		return nil
	}
	return &ResultResponse{
		UserID:           result.UserID,
		Rank:             result.Rank,
		TotalScore:       result.TotalScore,
		AdditionalPoints: result.AdditionalPoints,
		FinalScore:       result.FinalScore,
		CorrectAnswers:   result.CorrectAnswers,
		TotalTimeTaken:   result.TotalTimeTaken,
		IsWinner:         result.IsWinner,
		PrizeAmount:      result.PrizeAmount,
	}
}

// NewListResultResponse создает слайс DTO для списка результатов
func NewListResultResponse(results []entity.Result) []*ResultResponse {
	list := make([]*ResultResponse, len(results))
	for i := range results {
		list[i] = NewResultResponse(&results[i])
	}
	return list
}

// NewParticipantResponse создает DTO для регистрации
func NewParticipantResponse(p *entity.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		QuizID:            p.QuizID,
		UserID:            p.UserID,
		PaymentConfirmed:  p.PaymentConfirmed,
		JoinedWaitingRoom: p.JoinedWaitingRoom,
		RegisteredAt:      p.RegisteredAt,
	}
}

// AnswerResponse - результат принятого ответа
type AnswerResponse = quizmanager.AnswerResult
