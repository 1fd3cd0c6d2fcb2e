package quizmanager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

func TestRegistrationGate_Cutoff(t *testing.T) {
	// Arrange: викторина начинается через час
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 1)
	ctx := context.Background()

	// Act: за 61 секунду до начала регистрация открыта
	e.clock.Advance(time.Hour - 61*time.Second)
	p, err := e.gate.Register(ctx, quiz.ID, 1)

	// Assert
	require.NoError(t, err)
	assert.True(t, p.PaymentConfirmed, "бесплатная викторина не требует оплаты")
	participants, err := e.store.Participants().ListByQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, uint(1), participants[0].UserID)

	// За 60 секунд - уже закрыта
	e.clock.Advance(time.Second)
	_, err = e.gate.Register(ctx, quiz.ID, 2)
	assert.ErrorIs(t, err, apperrors.ErrRegistrationClosed)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestRegistrationGate_DuplicateRegistration(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 1)
	ctx := context.Background()

	_, err := e.gate.Register(ctx, quiz.ID, 1)
	require.NoError(t, err)
	_, err = e.gate.Register(ctx, quiz.ID, 1)

	assert.ErrorIs(t, err, apperrors.ErrAlreadyRegistered)
}

func TestRegistrationGate_ClosedAfterCountdown(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 1)
	ctx := context.Background()
	_, err := e.gate.Register(ctx, quiz.ID, 1)
	require.NoError(t, err)

	_, err = e.scheduler.StartSession(ctx, quiz.ID)
	require.NoError(t, err)

	_, err = e.gate.Register(ctx, quiz.ID, 2)
	assert.ErrorIs(t, err, apperrors.ErrRegistrationClosed)
	err = e.gate.Unregister(ctx, quiz.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrRegistrationClosed)
}

func TestRegistrationGate_PaymentFlow(t *testing.T) {
	// Arrange
	e := newTestEngine(t)
	quiz := e.seedPaidQuiz(t, 1, 100, 10)
	ctx := context.Background()

	p, err := e.gate.Register(ctx, quiz.ID, 1)
	require.NoError(t, err)
	assert.False(t, p.PaymentConfirmed)

	// До оплаты в комнату ожидания не пускают
	assert.ErrorIs(t, e.gate.JoinWaitingRoom(ctx, quiz.ID, 1), apperrors.ErrPaymentRequired)

	// Act: повторное подтверждение - no-op
	e.capture(t, quiz, 1, "pay_1")
	require.NoError(t, e.gate.ConfirmPayment(ctx, quiz.ID, 1, "pay_1"))
	require.NoError(t, e.gate.ConfirmPayment(ctx, quiz.ID, 1, "pay_1"))

	// Assert
	got, err := e.store.Participants().Get(ctx, quiz.ID, 1)
	require.NoError(t, err)
	assert.True(t, got.PaymentConfirmed)
	require.NoError(t, e.gate.JoinWaitingRoom(ctx, quiz.ID, 1))

	// Оплаченное участие не отменяется
	err = e.gate.Unregister(ctx, quiz.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	assert.ErrorIs(t, e.gate.ConfirmPayment(ctx, quiz.ID, 2, "pay_2"), apperrors.ErrNotParticipant)
}

func TestRegistrationGate_ConfirmPaymentChecksTransaction(t *testing.T) {
	// Arrange: пользователи 1 и 2 зарегистрированы, pay_1 списан с пользователя 1
	e := newTestEngine(t)
	quiz := e.seedPaidQuiz(t, 1, 100, 10)
	other := e.seedPaidQuiz(t, 1, 100, 10)
	ctx := context.Background()
	for _, userID := range []uint{1, 2} {
		_, err := e.gate.Register(ctx, quiz.ID, userID)
		require.NoError(t, err)
	}
	e.capture(t, quiz, 1, "pay_1")
	e.capture(t, other, 2, "pay_other")
	require.NoError(t, e.store.Transactions().Upsert(ctx, &entity.Transaction{
		PaymentID: "pay_created", QuizID: quiz.ID, UserID: 2,
		Amount: decimal.NewFromInt(100), Status: entity.TransactionStatusCreated,
	}))
	require.NoError(t, e.store.Transactions().Upsert(ctx, &entity.Transaction{
		PaymentID: "pay_small", QuizID: quiz.ID, UserID: 2,
		Amount: decimal.NewFromInt(99), Status: entity.TransactionStatusCaptured,
	}))

	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{name: "неизвестная транзакция", ref: "no-such-tx", wantErr: apperrors.ErrValidation},
		{name: "чужой платеж", ref: "pay_1", wantErr: apperrors.ErrConflict},
		{name: "платеж за другую викторину", ref: "pay_other", wantErr: apperrors.ErrConflict},
		{name: "платеж не списан", ref: "pay_created", wantErr: apperrors.ErrValidation},
		{name: "сумма меньше взноса", ref: "pay_small", wantErr: apperrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			err := e.gate.ConfirmPayment(ctx, quiz.ID, 2, tt.ref)

			// Assert
			assert.ErrorIs(t, err, tt.wantErr)
			p, getErr := e.store.Participants().Get(ctx, quiz.ID, 2)
			require.NoError(t, getErr)
			assert.False(t, p.PaymentConfirmed, "Участие не должно подтверждаться")
		})
	}

	// Собственный платеж подтверждает только своего владельца
	require.NoError(t, e.gate.ConfirmPayment(ctx, quiz.ID, 1, "pay_1"))
	_, err := e.scheduler.StartSession(ctx, quiz.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(e.quiz(t, quiz.ID).PrizePool), "В фонд входит один взнос")
}

func TestRegistrationGate_ConfirmPaymentRejectsFreeQuiz(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 1)
	_, err := e.gate.Register(context.Background(), quiz.ID, 1)
	require.NoError(t, err)

	err = e.gate.ConfirmPayment(context.Background(), quiz.ID, 1, "pay_1")

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRegistrationGate_UnregisterBeforeCountdown(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 1)
	ctx := context.Background()
	_, err := e.gate.Register(ctx, quiz.ID, 1)
	require.NoError(t, err)

	require.NoError(t, e.gate.Unregister(ctx, quiz.ID, 1))

	participants, err := e.store.Participants().ListByQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, participants)
	assert.ErrorIs(t, e.gate.Unregister(ctx, quiz.ID, 1), apperrors.ErrNotParticipant)
}

func TestRegistrationGate_JoinAfterStartFails(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 2)
	ctx := context.Background()
	_, err := e.gate.Register(ctx, quiz.ID, 1)
	require.NoError(t, err)
	e.goLive(t, quiz.ID)

	err = e.gate.JoinWaitingRoom(ctx, quiz.ID, 1)

	assert.ErrorIs(t, err, apperrors.ErrSessionAlreadyStarted)
}

func TestRegistrationGate_PrizePoolFromPaidParticipants(t *testing.T) {
	// Arrange: взнос 100, 10 оплативших, комиссия 10%, один не оплатил
	e := newTestEngine(t)
	quiz := e.seedPaidQuiz(t, 1, 100, 10)
	ctx := context.Background()
	for userID := uint(1); userID <= 11; userID++ {
		_, err := e.gate.Register(ctx, quiz.ID, userID)
		require.NoError(t, err)
		if userID <= 10 {
			ref := fmt.Sprintf("pay_%d", userID)
			e.capture(t, quiz, userID, ref)
			require.NoError(t, e.gate.ConfirmPayment(ctx, quiz.ID, userID, ref))
		}
	}

	// Act
	_, err := e.scheduler.StartSession(ctx, quiz.ID)
	require.NoError(t, err)

	// Assert
	got := e.quiz(t, quiz.ID)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.TotalEntryFees))
	assert.True(t, decimal.NewFromInt(100).Equal(got.Commission))
	assert.True(t, decimal.NewFromInt(900).Equal(got.PrizePool))
	assert.True(t, decimal.NewFromInt(450).Equal(got.PrizeFirst))
	assert.True(t, decimal.NewFromInt(270).Equal(got.PrizeSecond))
	assert.True(t, decimal.NewFromInt(180).Equal(got.PrizeThird))

	countdown := e.bc.ofType(EventCountdownStarted)
	require.Len(t, countdown, 1)
	assert.True(t, decimal.NewFromInt(900).Equal(countdown[0].Data.(CountdownStartedEvent).PrizePool))
	assert.Len(t, e.notifier.sent, 10, "неоплатившие не получают уведомление о старте")
}
