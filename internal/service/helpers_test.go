package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/repository/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newQuestions(n int) []entity.Question {
	qs := make([]entity.Question, n)
	for i := range qs {
		qs[i] = entity.Question{
			Text:          "Столица Казахстана?",
			Options:       entity.StringArray{"Астана", "Алматы", "Шымкент", "Караганда"},
			CorrectOption: 0,
		}
	}
	return qs
}

func seedPaidQuiz(t *testing.T, store *memory.Store, fee int64) *entity.Quiz {
	t.Helper()
	quiz := &entity.Quiz{
		Title:            "Платная",
		ScheduledTime:    testNow.Add(time.Hour),
		IsPaid:           true,
		EntryFee:         decimal.NewFromInt(fee),
		PrizeSplitFirst:  50,
		PrizeSplitSecond: 30,
		PrizeSplitThird:  20,
		Questions:        newQuestions(1),
	}
	require.NoError(t, store.Quizzes().Create(context.Background(), quiz))
	return quiz
}

// MockPusher реализует UserPusher
type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) SendEventToUser(userID uint, eventType string, data interface{}) error {
	args := m.Called(userID, eventType, data)
	return args.Error(0)
}

// MockEmailSender реализует EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendNotification(ctx context.Context, toEmail, subject, body, link, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, subject, body, link, idempotencyKey)
	return args.Error(0)
}

// MockPaymentConfirmer реализует PaymentConfirmer
type MockPaymentConfirmer struct {
	mock.Mock
}

func (m *MockPaymentConfirmer) ConfirmPayment(ctx context.Context, quizID, userID uint, transactionRef string) error {
	args := m.Called(ctx, quizID, userID, transactionRef)
	return args.Error(0)
}

// recordingBroadcaster запоминает события, разосланные движком
type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) BroadcastEventToQuiz(_ uint, eventType string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, eventType)
	return nil
}

func (b *recordingBroadcaster) SendEventToUser(_ uint, eventType string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, eventType)
	return nil
}

func (b *recordingBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.types {
		if t == eventType {
			n++
		}
	}
	return n
}
