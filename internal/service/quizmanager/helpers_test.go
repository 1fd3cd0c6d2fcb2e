package quizmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
	"github.com/yourusername/quiz-engine/internal/repository/memory"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	QuizID uint
	UserID uint
	Type   string
	Data   interface{}
}

// fakeBroadcaster записывает все разосланные события
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) BroadcastEventToQuiz(quizID uint, eventType string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{QuizID: quizID, Type: eventType, Data: data})
	return nil
}

func (b *fakeBroadcaster) SendEventToUser(userID uint, eventType string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{UserID: userID, Type: eventType, Data: data})
	return nil
}

func (b *fakeBroadcaster) ofType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type sentNotification struct {
	RecipientID uint
	Type        string
	Content     string
	Link        string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Notify(recipientID uint, notificationType, content, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{recipientID, notificationType, content, link})
}

func (n *fakeNotifier) ofType(notificationType string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Type == notificationType {
			out = append(out, s)
		}
	}
	return out
}

// testEngine собирает компоненты движка поверх хранилища в памяти и управляемых часов
type testEngine struct {
	store     *memory.Store
	clock     *clock.Fake
	config    *Config
	deps      *Dependencies
	bc        *fakeBroadcaster
	notifier  *fakeNotifier
	finalizer *Finalizer
	scheduler *Scheduler
	processor *AnswerProcessor
	gate      *RegistrationGate
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	return newTestEngineWith(t, DefaultConfig(), nil)
}

// newTestEngineWith позволяет подменить конфигурацию и репозиторий результатов
func newTestEngineWith(t *testing.T, config *Config, results repository.ResultRepository) *testEngine {
	t.Helper()
	store := memory.NewStore()
	fake := clock.NewFake(testStart)
	bc := &fakeBroadcaster{}
	notifier := &fakeNotifier{}
	if results == nil {
		results = store.Results()
	}

	deps := &Dependencies{
		QuizRepo:        store.Quizzes(),
		ParticipantRepo: store.Participants(),
		ResultRepo:      results,
		UserRepo:        store.Users(),
		TransactionRepo: store.Transactions(),
		CacheRepo:       store.Cache(),
		Broadcaster:     bc,
		Notifier:        notifier,
		Clock:           fake,
	}
	finalizer := NewFinalizer(config, deps)
	scheduler := NewScheduler(config, deps, finalizer)
	t.Cleanup(scheduler.Stop)
	processor := NewAnswerProcessor(config, deps, scheduler)
	scheduler.OnFinish(processor.Forget)

	return &testEngine{
		store:     store,
		clock:     fake,
		config:    config,
		deps:      deps,
		bc:        bc,
		notifier:  notifier,
		finalizer: finalizer,
		scheduler: scheduler,
		processor: processor,
		gate:      NewRegistrationGate(config, deps),
	}
}

func (e *testEngine) seedQuiz(t *testing.T, questions int) *entity.Quiz {
	t.Helper()
	quiz := &entity.Quiz{
		Title:            "Общие знания",
		ScheduledTime:    e.clock.Now().Add(time.Hour),
		PrizeSplitFirst:  entity.DefaultPrizeSplitFirst,
		PrizeSplitSecond: entity.DefaultPrizeSplitSecond,
		PrizeSplitThird:  entity.DefaultPrizeSplitThird,
	}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, entity.Question{
			Position:      i,
			Text:          "Вопрос",
			Options:       entity.StringArray{"a", "b", "c", "d"},
			CorrectOption: i % entity.OptionsPerQuestion,
			Tags:          entity.StringArray{"history"},
		})
	}
	require.NoError(t, e.store.Quizzes().Create(context.Background(), quiz))
	return quiz
}

func (e *testEngine) seedPaidQuiz(t *testing.T, questions int, fee int64, commission int64) *entity.Quiz {
	t.Helper()
	quiz := &entity.Quiz{
		Title:             "Платная викторина",
		ScheduledTime:     e.clock.Now().Add(time.Hour),
		IsPaid:            true,
		EntryFee:          decimal.NewFromInt(fee),
		CommissionPercent: decimal.NewFromInt(commission),
		PrizeSplitFirst:   entity.DefaultPrizeSplitFirst,
		PrizeSplitSecond:  entity.DefaultPrizeSplitSecond,
		PrizeSplitThird:   entity.DefaultPrizeSplitThird,
	}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, entity.Question{
			Position: i, Text: "Вопрос", Options: entity.StringArray{"a", "b", "c", "d"},
		})
	}
	require.NoError(t, e.store.Quizzes().Create(context.Background(), quiz))
	return quiz
}

// capture сохраняет списанный платеж пользователя на сумму взноса
func (e *testEngine) capture(t *testing.T, quiz *entity.Quiz, userID uint, ref string) {
	t.Helper()
	require.NoError(t, e.store.Transactions().Upsert(context.Background(), &entity.Transaction{
		OrderID:   "order_" + ref,
		PaymentID: ref,
		QuizID:    quiz.ID,
		UserID:    userID,
		Amount:    quiz.EntryFee,
		Status:    entity.TransactionStatusCaptured,
	}))
}

// join регистрирует пользователей и вводит их в комнату ожидания
func (e *testEngine) join(t *testing.T, quizID uint, userIDs ...uint) {
	t.Helper()
	ctx := context.Background()
	for _, id := range userIDs {
		_, err := e.gate.Register(ctx, quizID, id)
		require.NoError(t, err)
		require.NoError(t, e.gate.JoinWaitingRoom(ctx, quizID, id))
	}
}

// goLive объявляет отсчет и прокручивает время до первого вопроса
func (e *testEngine) goLive(t *testing.T, quizID uint) {
	t.Helper()
	_, err := e.scheduler.StartSession(context.Background(), quizID)
	require.NoError(t, err)
	e.clock.Advance(e.config.CountdownDelay)
}

func (e *testEngine) questions(t *testing.T, quizID uint) []entity.Question {
	t.Helper()
	quiz, err := e.store.Quizzes().GetWithQuestions(context.Background(), quizID)
	require.NoError(t, err)
	return quiz.Questions
}

func (e *testEngine) quiz(t *testing.T, quizID uint) *entity.Quiz {
	t.Helper()
	quiz, err := e.store.Quizzes().GetByID(context.Background(), quizID)
	require.NoError(t, err)
	return quiz
}

func (e *testEngine) answer(quizID, userID uint, q entity.Question, option *int, seconds int) (*AnswerResult, error) {
	return e.processor.SubmitAnswer(context.Background(), SubmitAnswerRequest{
		QuizID:         quizID,
		UserID:         userID,
		QuestionID:     q.ID,
		SelectedOption: option,
		TimeTakenSec:   seconds,
	})
}

func intPtr(v int) *int { return &v }

func wrongOption(q entity.Question) *int {
	return intPtr((q.CorrectOption + 1) % entity.OptionsPerQuestion)
}
