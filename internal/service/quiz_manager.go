package service

import (
	"context"
	"log"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
)

// QuizManager координирует компоненты движка викторин: регистрацию, планировщик,
// обработку ответов и финализацию
type QuizManager struct {
	config *quizmanager.Config

	// Компоненты системы
	scheduler       *quizmanager.Scheduler
	answerProcessor *quizmanager.AnswerProcessor
	registration    *quizmanager.RegistrationGate
	finalizer       *quizmanager.Finalizer
}

// NewQuizManager создает новый экземпляр менеджера викторин
func NewQuizManager(config *quizmanager.Config, deps *quizmanager.Dependencies) *QuizManager {
	finalizer := quizmanager.NewFinalizer(config, deps)
	scheduler := quizmanager.NewScheduler(config, deps, finalizer)

	answerProcessor := quizmanager.NewAnswerProcessor(config, deps, scheduler)
	scheduler.OnFinish(answerProcessor.Forget)

	qm := &QuizManager{
		config:          config,
		scheduler:       scheduler,
		answerProcessor: answerProcessor,
		registration:    quizmanager.NewRegistrationGate(config, deps),
		finalizer:       finalizer,
	}

	log.Println("[QuizManager] Менеджер викторин успешно инициализирован")
	return qm
}

// Start восстанавливает таймеры викторин, прерванных предыдущим запуском
func (qm *QuizManager) Start(ctx context.Context) error {
	return qm.scheduler.Resume(ctx)
}

// Shutdown останавливает все таймеры
func (qm *QuizManager) Shutdown() {
	qm.scheduler.Stop()
	log.Println("[QuizManager] Менеджер викторин остановлен")
}

// StartQuiz объявляет обратный отсчет и возвращает время начала
func (qm *QuizManager) StartQuiz(ctx context.Context, quizID uint) (time.Time, error) {
	return qm.scheduler.StartSession(ctx, quizID)
}

// EndQuiz принудительно завершает идущую викторину через общий финализатор
func (qm *QuizManager) EndQuiz(ctx context.Context, quizID uint) error {
	return qm.scheduler.FinishSession(ctx, quizID, quizmanager.TriggerAdmin)
}

// SessionState возвращает состояние викторины на этом инстансе
func (qm *QuizManager) SessionState(quizID uint) (string, bool) {
	state, ok := qm.scheduler.State(quizID)
	return state.String(), ok
}

// Register регистрирует пользователя на викторину
func (qm *QuizManager) Register(ctx context.Context, quizID, userID uint) (*entity.Participant, error) {
	return qm.registration.Register(ctx, quizID, userID)
}

// Unregister отменяет регистрацию
func (qm *QuizManager) Unregister(ctx context.Context, quizID, userID uint) error {
	return qm.registration.Unregister(ctx, quizID, userID)
}

// ConfirmPayment подтверждает оплату участия
func (qm *QuizManager) ConfirmPayment(ctx context.Context, quizID, userID uint, transactionRef string) error {
	return qm.registration.ConfirmPayment(ctx, quizID, userID, transactionRef)
}

// JoinWaitingRoom отмечает участника в комнате ожидания
func (qm *QuizManager) JoinWaitingRoom(ctx context.Context, quizID, userID uint) error {
	return qm.registration.JoinWaitingRoom(ctx, quizID, userID)
}

// SubmitAnswer обрабатывает ответ пользователя
func (qm *QuizManager) SubmitAnswer(ctx context.Context, req quizmanager.SubmitAnswerRequest) (*quizmanager.AnswerResult, error) {
	return qm.answerProcessor.SubmitAnswer(ctx, req)
}
