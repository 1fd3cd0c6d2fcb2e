package quizmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/metrics"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// SessionFinisher завершает викторину через общий финализатор
type SessionFinisher interface {
	FinishSession(ctx context.Context, quizID uint, trigger string) error
}

// SubmitAnswerRequest - ответ пользователя на вопрос викторины
type SubmitAnswerRequest struct {
	QuizID         uint
	UserID         uint
	QuestionID     uint
	SelectedOption *int // nil - вопрос пропущен
	TimeTakenSec   int
}

// AnswerResult - результат обработки ответа
type AnswerResult struct {
	QuestionID        uint `json:"question_id"`
	IsCorrect         bool `json:"is_correct"`
	Points            int  `json:"points"`
	TotalScore        int  `json:"total_score"`
	QuestionsAnswered int  `json:"questions_answered"`
	TotalQuestions    int  `json:"total_questions"`
}

// AnswerProcessor отвечает за обработку ответов пользователей
type AnswerProcessor struct {
	// Настройки
	config *Config

	// Зависимости
	deps     *Dependencies
	finisher SessionFinisher

	quizzes sync.Map // map[uint]*entity.Quiz - идущие викторины с вопросами
}

// NewAnswerProcessor создает новый процессор ответов
func NewAnswerProcessor(config *Config, deps *Dependencies, finisher SessionFinisher) *AnswerProcessor {
	return &AnswerProcessor{
		config:   config,
		deps:     deps,
		finisher: finisher,
	}
}

// SubmitAnswer проверяет, оценивает и сохраняет ответ, затем проверяет,
// не ответили ли все участники на все вопросы.
func (ap *AnswerProcessor) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*AnswerResult, error) {
	if req.TimeTakenSec < 0 {
		return nil, fmt.Errorf("%w: time_taken must not be negative", apperrors.ErrValidation)
	}

	quiz, cached, err := ap.activeQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	question, ok := quiz.QuestionByID(req.QuestionID)
	if !ok && cached {
		// викторину могли завершить на другом инстансе - перечитываем состояние
		ap.Forget(req.QuizID)
		if quiz, _, err = ap.activeQuiz(ctx, req.QuizID); err != nil {
			return nil, err
		}
		question, ok = quiz.QuestionByID(req.QuestionID)
	}
	if !ok {
		ap.reject("unknown_question")
		return nil, apperrors.ErrUnknownQuestion
	}
	if req.SelectedOption != nil && !question.IsValidOption(*req.SelectedOption) {
		return nil, fmt.Errorf("%w: selected option %d is out of range", apperrors.ErrValidation, *req.SelectedOption)
	}

	participant, err := ap.deps.ParticipantRepo.Get(ctx, req.QuizID, req.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		ap.reject("not_participant")
		return nil, apperrors.ErrNotParticipant
	}
	if err != nil {
		return nil, err
	}
	if !participant.IsPaymentBacked() {
		ap.reject("payment_required")
		return nil, apperrors.ErrPaymentRequired
	}

	// Быстрый отсев повторов через кеш. Авторитетна уникальность в хранилище,
	// поэтому при недоступном кеше продолжаем.
	dedupKey := fmt.Sprintf("quiz:%d:answer:%d:%d", req.QuizID, req.UserID, req.QuestionID)
	dedupSet := false
	if ap.deps.CacheRepo != nil {
		set, err := ap.deps.CacheRepo.SetNX(ctx, dedupKey, 1, ap.config.AnswerDedupTTL)
		switch {
		case err != nil:
			log.Printf("[AnswerProcessor] Ошибка кеша при проверке повтора %s: %v", dedupKey, err)
		case !set:
			ap.reject("duplicate")
			return nil, apperrors.ErrDuplicateAnswer
		default:
			dedupSet = true
		}
	}

	isCorrect := question.IsCorrect(req.SelectedOption)
	answer := &entity.UserAnswer{
		UserID:         req.UserID,
		QuizID:         req.QuizID,
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		IsCorrect:      isCorrect,
		TimeTakenSec:   req.TimeTakenSec,
		Points:         question.CalculatePoints(isCorrect, req.TimeTakenSec, ap.config.BasePoints),
		CreatedAt:      ap.deps.Clock.Now(),
	}

	result, err := ap.deps.ResultRepo.SaveAnswer(ctx, answer)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrDuplicateAnswer):
			ap.reject("duplicate")
			return nil, err
		case errors.Is(err, apperrors.ErrSessionNotActive):
			ap.quizzes.Delete(req.QuizID)
			ap.reject("inactive")
		default:
			log.Printf("[AnswerProcessor] Ошибка сохранения ответа пользователя #%d на вопрос #%d (викторина #%d): %v",
				req.UserID, req.QuestionID, req.QuizID, err)
		}
		if dedupSet {
			if delErr := ap.deps.CacheRepo.Delete(ctx, dedupKey); delErr != nil {
				log.Printf("[AnswerProcessor] Не удалось удалить ключ %s: %v", dedupKey, delErr)
			}
		}
		return nil, err
	}

	if isCorrect {
		metrics.AnswersTotal.WithLabelValues("correct").Inc()
	} else {
		metrics.AnswersTotal.WithLabelValues("incorrect").Inc()
		if len(question.Tags) > 0 {
			if err := ap.deps.UserRepo.IncrementImprovementAreas(ctx, req.UserID, question.Tags); err != nil {
				log.Printf("[AnswerProcessor] Ошибка обновления тем для улучшения пользователя #%d: %v", req.UserID, err)
			}
		}
	}

	out := &AnswerResult{
		QuestionID:        req.QuestionID,
		IsCorrect:         isCorrect,
		Points:            answer.Points,
		TotalScore:        result.TotalScore,
		QuestionsAnswered: result.QuestionsAnswered,
		TotalQuestions:    len(quiz.Questions),
	}

	event := AnswerResultEvent{
		QuizID:            req.QuizID,
		QuestionID:        req.QuestionID,
		IsCorrect:         isCorrect,
		Points:            answer.Points,
		TotalScore:        result.TotalScore,
		QuestionsAnswered: result.QuestionsAnswered,
	}
	if err := ap.deps.Broadcaster.SendEventToUser(req.UserID, EventAnswerResult, event); err != nil {
		log.Printf("[AnswerProcessor] Не удалось отправить результат ответа пользователю #%d: %v", req.UserID, err)
	}

	if result.QuestionsAnswered >= len(quiz.Questions) {
		// завершение не должно зависеть от отмены запроса клиентом
		ap.checkCompletion(context.WithoutCancel(ctx), quiz)
	}
	return out, nil
}

// Forget удаляет викторину из кеша процессора. Вызывается планировщиком при завершении.
func (ap *AnswerProcessor) Forget(quizID uint) {
	ap.quizzes.Delete(quizID)
}

// activeQuiz возвращает идущую викторину с вопросами. Вопросы неизменны,
// поэтому загруженная викторина переиспользуется до завершения (см. Forget).
// cached - викторина взята из кеша процессора.
func (ap *AnswerProcessor) activeQuiz(ctx context.Context, quizID uint) (quiz *entity.Quiz, cached bool, err error) {
	if v, ok := ap.quizzes.Load(quizID); ok {
		return v.(*entity.Quiz), true, nil
	}

	quiz, err = ap.deps.QuizRepo.GetWithQuestions(ctx, quizID)
	if err != nil {
		return nil, false, err
	}
	if !quiz.IsActive() {
		ap.reject("inactive")
		return nil, false, apperrors.ErrSessionNotActive
	}
	ap.quizzes.Store(quizID, quiz)
	return quiz, false, nil
}

// checkCompletion завершает викторину досрочно, если каждый участник, оплативший участие
// и вошедший в комнату ожидания, ответил на все вопросы
func (ap *AnswerProcessor) checkCompletion(ctx context.Context, quiz *entity.Quiz) {
	participants, err := ap.deps.ParticipantRepo.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		log.Printf("[AnswerProcessor] Ошибка получения участников викторины #%d: %v", quiz.ID, err)
		return
	}

	total := len(quiz.Questions)
	eligible := 0
	for _, p := range participants {
		if !p.IsEligibleForCompletion() {
			continue
		}
		eligible++
		res, err := ap.deps.ResultRepo.GetUserResult(ctx, quiz.ID, p.UserID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return
		}
		if err != nil {
			log.Printf("[AnswerProcessor] Ошибка получения результата пользователя #%d: %v", p.UserID, err)
			return
		}
		if res.QuestionsAnswered < total {
			return
		}
	}
	if eligible == 0 {
		return
	}

	log.Printf("[AnswerProcessor] Все участники викторины #%d (%d) ответили на все вопросы, завершаем досрочно", quiz.ID, eligible)
	if err := ap.finisher.FinishSession(ctx, quiz.ID, TriggerAllAnswered); err != nil {
		log.Printf("[AnswerProcessor] Ошибка досрочного завершения викторины #%d: %v", quiz.ID, err)
	}
}

func (ap *AnswerProcessor) reject(reason string) {
	metrics.AnswersTotal.WithLabelValues(reason).Inc()
}
