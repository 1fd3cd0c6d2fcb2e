package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/middleware"
)

func TestUserHandler_MeAndImprovementAreas(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Users().Create(ctx, &entity.User{ID: 5, Username: "carol", CumulativeScore: 250}))
	require.NoError(t, env.store.Users().IncrementImprovementAreas(ctx, 5, []string{"история", "химия"}))
	require.NoError(t, env.store.Users().IncrementImprovementAreas(ctx, 5, []string{"история"}))

	// Act
	w := env.do(t, http.MethodGet, "/api/users/me", 5, nil)

	// Assert
	assertStatus(t, w, http.StatusOK)
	var me struct {
		Username        string `json:"username"`
		CumulativeScore int64  `json:"cumulative_score"`
	}
	decodeBody(t, w, &me)
	assert.Equal(t, "carol", me.Username)
	assert.EqualValues(t, 250, me.CumulativeScore)

	w = env.do(t, http.MethodGet, "/api/users/me/improvement-areas", 5, nil)
	assertStatus(t, w, http.StatusOK)
	var areas struct {
		Areas []struct {
			Tag   string `json:"tag"`
			Count int    `json:"count"`
		} `json:"areas"`
	}
	decodeBody(t, w, &areas)
	require.Len(t, areas.Areas, 2)
	assert.Equal(t, "история", areas.Areas[0].Tag, "Чаще всего ошибки по истории")
	assert.Equal(t, 2, areas.Areas[0].Count)

	w = env.do(t, http.MethodGet, "/api/users/me", 0, nil)
	assertStatus(t, w, http.StatusUnauthorized)

	w = env.do(t, http.MethodGet, "/api/users/me", 404, nil)
	assertStatus(t, w, http.StatusNotFound)
}

func TestUserHandler_Notifications(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/users/me/notifications?limit=5", 6, nil)

	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())
}

func TestPaymentHandler_Webhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	free := env.seedQuiz(t, 1)
	paid := &entity.Quiz{
		Title:         "Платная",
		ScheduledTime: testNow.Add(time.Hour),
		IsPaid:        true,
		EntryFee:      decimal.NewFromInt(10),
		Questions: []entity.Question{
			{Text: "?", Options: entity.StringArray{"a", "b", "c", "d"}},
		},
	}
	require.NoError(t, env.store.Quizzes().Create(ctx, paid))
	_, err := env.qm.Register(ctx, paid.ID, 1)
	require.NoError(t, err)

	webhook := func(quizID uint, amount, status string) map[string]interface{} {
		return map[string]interface{}{
			"order_id": "order_1", "payment_id": "pay_1", "quiz_id": quizID, "user_id": 1,
			"amount": amount, "status": status,
		}
	}

	t.Run("Без секрета шлюза - 401", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/payments/webhook", 0, webhook(paid.ID, "10", "captured"))
		assertStatus(t, w, http.StatusUnauthorized)

		w = env.doWithHeaders(t, http.MethodPost, "/api/payments/webhook", 0, webhook(paid.ID, "10", "captured"),
			map[string]string{middleware.WebhookSecretHeader: "forged"})
		assertStatus(t, w, http.StatusUnauthorized)

		p, err := env.store.Participants().Get(ctx, paid.ID, 1)
		require.NoError(t, err)
		assert.False(t, p.PaymentConfirmed)
		_, err = env.store.Transactions().GetByPaymentID(ctx, "pay_1")
		assert.Error(t, err, "транзакция не сохраняется")
	})

	t.Run("Бесплатная викторина - 422", func(t *testing.T) {
		w := env.webhook(t, webhook(free.ID, "10", "captured"))
		assertStatus(t, w, http.StatusUnprocessableEntity)
	})

	t.Run("Нет обязательных полей - 400", func(t *testing.T) {
		w := env.webhook(t, map[string]interface{}{"status": "captured"})
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("Неизвестная викторина - 404", func(t *testing.T) {
		w := env.webhook(t, webhook(777, "10", "captured"))
		assertStatus(t, w, http.StatusNotFound)
	})

	t.Run("Созданный платеж не подтверждает участие", func(t *testing.T) {
		w := env.webhook(t, webhook(paid.ID, "10", "created"))
		assertStatus(t, w, http.StatusOK)

		p, err := env.store.Participants().Get(ctx, paid.ID, 1)
		require.NoError(t, err)
		assert.False(t, p.PaymentConfirmed)
	})

	t.Run("Списанный платеж подтверждает участие, повтор безопасен", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w := env.webhook(t, webhook(paid.ID, "10.00", "captured"))
			assertStatus(t, w, http.StatusOK)
		}

		p, err := env.store.Participants().Get(ctx, paid.ID, 1)
		require.NoError(t, err)
		assert.True(t, p.PaymentConfirmed)
		assert.Equal(t, "pay_1", p.TransactionRef)

		// Оплаченную регистрацию отменить нельзя
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/quizzes/%d/register", paid.ID), 1, nil)
		assertStatus(t, w, http.StatusConflict)
	})

	t.Run("Чужой платеж не подтверждает участие", func(t *testing.T) {
		_, err := env.qm.Register(ctx, paid.ID, 2)
		require.NoError(t, err)

		body := webhook(paid.ID, "10.00", "captured")
		body["user_id"] = 2
		w := env.webhook(t, body)
		assertStatus(t, w, http.StatusConflict)

		p, err := env.store.Participants().Get(ctx, paid.ID, 2)
		require.NoError(t, err)
		assert.False(t, p.PaymentConfirmed)

		err = env.qm.ConfirmPayment(ctx, paid.ID, 2, "pay_1")
		assert.Error(t, err, "Платеж первого пользователя не подходит второму")
	})
}
