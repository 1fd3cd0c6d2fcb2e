package quizmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

func TestAnswerProcessor_ScoringAndEarlyCompletion(t *testing.T) {
	// Arrange: A отвечает верно на 3-й секунде и ошибается во втором вопросе,
	// B отвечает верно на оба вопроса за 5 секунд
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 2)
	e.join(t, quiz.ID, 1, 2)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)
	ctx := context.Background()

	// Act
	resA, err := e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 3)
	require.NoError(t, err)
	assert.True(t, resA.IsCorrect)
	assert.Equal(t, 7, resA.Points)

	resB, err := e.answer(quiz.ID, 2, qs[0], intPtr(qs[0].CorrectOption), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, resB.Points)

	e.clock.Advance(10 * time.Second)

	resA, err = e.answer(quiz.ID, 1, qs[1], wrongOption(qs[1]), 4)
	require.NoError(t, err)
	assert.False(t, resA.IsCorrect)
	assert.Zero(t, resA.Points)
	assert.False(t, e.quiz(t, quiz.ID).Ended, "B еще не ответил на все вопросы")

	resB, err = e.answer(quiz.ID, 2, qs[1], intPtr(qs[1].CorrectOption), 5)
	require.NoError(t, err)
	assert.Equal(t, 10, resB.TotalScore)
	assert.Equal(t, 2, resB.QuestionsAnswered)

	// Assert: все ответили - викторина завершена досрочно
	got := e.quiz(t, quiz.ID)
	require.True(t, got.Ended)
	require.NotNil(t, got.FirstPlaceUserID)
	assert.Equal(t, uint(2), *got.FirstPlaceUserID)
	assert.Equal(t, 110, got.FirstPlaceScore)
	require.NotNil(t, got.SecondPlaceUserID)
	assert.Equal(t, uint(1), *got.SecondPlaceUserID)
	assert.Equal(t, 82, got.SecondPlaceScore)
	assert.Nil(t, got.ThirdPlaceUserID)

	results, err := e.store.Results().GetQuizResults(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)

	userB, err := e.store.Users().GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(110), userB.CumulativeScore)

	ended := e.bc.ofType(EventEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, TriggerAllAnswered, ended[0].Data.(EndedEvent).Trigger)

	// Досрочное завершение останавливает рассылку вопросов
	e.clock.Advance(time.Hour)
	assert.Len(t, e.bc.ofType(EventQuestion), 2)
	assert.Len(t, e.bc.ofType(EventEnded), 1)
}

func TestAnswerProcessor_DuplicateAnswerRejected(t *testing.T) {
	tests := []struct {
		name      string
		withCache bool
	}{
		{name: "отсев через кеш", withCache: true},
		{name: "уникальность в хранилище", withCache: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			e := newTestEngine(t)
			if !tt.withCache {
				e.deps.CacheRepo = nil
			}
			quiz := e.seedQuiz(t, 2)
			e.join(t, quiz.ID, 1)
			qs := e.questions(t, quiz.ID)
			e.goLive(t, quiz.ID)

			first, err := e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 2)
			require.NoError(t, err)

			// Act
			_, err = e.answer(quiz.ID, 1, qs[0], wrongOption(qs[0]), 0)

			// Assert
			assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)
			assert.ErrorIs(t, err, apperrors.ErrConflict)
			res, err := e.store.Results().GetUserResult(context.Background(), quiz.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, first.TotalScore, res.TotalScore)
			assert.Equal(t, 1, res.QuestionsAnswered)
		})
	}
}

// brokenCache всегда отвечает ошибкой
type brokenCache struct{}

func (brokenCache) Delete(context.Context, string) error { return errors.New("redis down") }
func (brokenCache) SetJSON(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}
func (brokenCache) GetJSON(context.Context, string, interface{}) error { return errors.New("redis down") }
func (brokenCache) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestAnswerProcessor_CacheFailureDoesNotBlockAnswers(t *testing.T) {
	e := newTestEngine(t)
	e.deps.CacheRepo = brokenCache{}
	quiz := e.seedQuiz(t, 2)
	e.join(t, quiz.ID, 1)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)

	res, err := e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 1)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Points)

	_, err = e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 1)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)
}

func TestAnswerProcessor_Rejections(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 2)
	other := e.seedQuiz(t, 1)
	e.join(t, quiz.ID, 1)
	qs := e.questions(t, quiz.ID)
	otherQs := e.questions(t, other.ID)

	t.Run("викторина еще не началась", func(t *testing.T) {
		_, err := e.answer(quiz.ID, 1, qs[0], intPtr(0), 1)
		assert.ErrorIs(t, err, apperrors.ErrSessionNotActive)
	})

	e.goLive(t, quiz.ID)

	t.Run("вопрос из другой викторины", func(t *testing.T) {
		_, err := e.answer(quiz.ID, 1, otherQs[0], intPtr(0), 1)
		assert.ErrorIs(t, err, apperrors.ErrUnknownQuestion)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("вариант вне диапазона", func(t *testing.T) {
		_, err := e.answer(quiz.ID, 1, qs[0], intPtr(4), 1)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("отрицательное время", func(t *testing.T) {
		_, err := e.answer(quiz.ID, 1, qs[0], intPtr(0), -1)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("не участник", func(t *testing.T) {
		_, err := e.answer(quiz.ID, 99, qs[0], intPtr(0), 1)
		assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	})

	t.Run("после завершения", func(t *testing.T) {
		require.NoError(t, e.scheduler.FinishSession(context.Background(), quiz.ID, TriggerAdmin))
		_, err := e.answer(quiz.ID, 1, qs[1], intPtr(0), 1)
		assert.ErrorIs(t, err, apperrors.ErrSessionNotActive)
	})
}

func TestAnswerProcessor_UnpaidParticipantRejected(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedPaidQuiz(t, 1, 50, 0)
	_, err := e.gate.Register(context.Background(), quiz.ID, 7)
	require.NoError(t, err)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)

	_, err = e.answer(quiz.ID, 7, qs[0], intPtr(0), 1)

	assert.ErrorIs(t, err, apperrors.ErrPaymentRequired)
}

func TestAnswerProcessor_SkippedAnswerScoresZeroAndTracksTopics(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 2)
	e.join(t, quiz.ID, 1)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)
	ctx := context.Background()

	res, err := e.answer(quiz.ID, 1, qs[0], nil, 10)
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Zero(t, res.Points)

	_, err = e.answer(quiz.ID, 1, qs[1], intPtr(qs[1].CorrectOption), 20)
	require.NoError(t, err)

	areas, err := e.store.Users().GetImprovementAreas(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, "history", areas[0].Tag)
	assert.Equal(t, 1, areas[0].Count, "верный ответ не увеличивает счетчик")
}

func TestAnswerProcessor_CompletionCountsOnlyWaitingRoomParticipants(t *testing.T) {
	// Arrange: пользователь 2 зарегистрирован, но не пришел в комнату ожидания
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 1)
	e.join(t, quiz.ID, 1)
	_, err := e.gate.Register(context.Background(), quiz.ID, 2)
	require.NoError(t, err)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)

	// Act
	_, err = e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 1)

	// Assert
	require.NoError(t, err)
	assert.True(t, e.quiz(t, quiz.ID).Ended)
}

func TestAnswerProcessor_SendsAnswerResultToUser(t *testing.T) {
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 2)
	e.join(t, quiz.ID, 3)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)

	_, err := e.answer(quiz.ID, 3, qs[0], intPtr(qs[0].CorrectOption), 0)
	require.NoError(t, err)

	events := e.bc.ofType(EventAnswerResult)
	require.Len(t, events, 1)
	assert.Equal(t, uint(3), events[0].UserID)
	payload := events[0].Data.(AnswerResultEvent)
	assert.True(t, payload.IsCorrect)
	assert.Equal(t, 10, payload.Points)
}

func TestAnswerProcessor_ConcurrentAnswersFromOneUser(t *testing.T) {
	// Arrange: единственный участник отвечает на все вопросы одновременно
	const n = 8
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, n)
	e.join(t, quiz.ID, 1)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)

	expected := 0
	for i := range qs {
		expected += e.config.BasePoints - i%5
	}

	// Act
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		errs     []error
		finished int
	)
	for i := range qs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.answer(quiz.ID, 1, qs[i], intPtr(qs[i].CorrectOption), i%5)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.QuestionsAnswered == n {
				finished++
			}
		}(i)
	}
	wg.Wait()

	// Assert
	require.Empty(t, errs)
	assert.Equal(t, 1, finished, "Последний ответ видит ровно один вызов")

	result, err := e.store.Results().GetUserResult(context.Background(), quiz.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, n, result.QuestionsAnswered)
	assert.Equal(t, expected, result.TotalScore)

	assert.True(t, e.quiz(t, quiz.ID).Ended)
	ended := e.bc.ofType(EventEnded)
	require.Len(t, ended, 1, "Досрочное завершение срабатывает один раз")
	assert.Equal(t, TriggerAllAnswered, ended[0].Data.(EndedEvent).Trigger)
	assert.Len(t, e.bc.ofType(EventShowLeaderboard), 1)
}

func TestAnswerProcessor_EndedSessionIsNotCached(t *testing.T) {
	tests := []struct {
		name string
		end  func(e *testEngine, quizID uint)
	}{
		{
			name: "время викторины истекло",
			end: func(e *testEngine, _ uint) {
				e.clock.Advance(e.config.SessionDuration)
			},
		},
		{
			name: "администратор",
			end: func(e *testEngine, quizID uint) {
				require.NoError(t, e.scheduler.FinishSession(context.Background(), quizID, TriggerAdmin))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange: ответ на первый вопрос кладет викторину в кеш процессора
			e := newTestEngine(t)
			quiz := e.seedQuiz(t, 3)
			e.join(t, quiz.ID, 1, 2)
			qs := e.questions(t, quiz.ID)
			e.goLive(t, quiz.ID)
			_, err := e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 1)
			require.NoError(t, err)

			// Act
			tt.end(e, quiz.ID)

			// Assert
			require.True(t, e.quiz(t, quiz.ID).Ended)
			_, cached := e.processor.quizzes.Load(quiz.ID)
			assert.False(t, cached, "Завершенная викторина удаляется из кеша")

			_, err = e.answer(quiz.ID, 1, entity.Question{ID: 9999}, intPtr(0), 1)
			assert.ErrorIs(t, err, apperrors.ErrSessionNotActive, "Сначала проверяется состояние викторины")
			_, err = e.answer(quiz.ID, 2, qs[1], intPtr(0), 1)
			assert.ErrorIs(t, err, apperrors.ErrSessionNotActive)
		})
	}
}

func TestAnswerProcessor_StaleCacheIsReloadedOnUnknownQuestion(t *testing.T) {
	// Arrange: викторину завершил другой инстанс, локальный кеш об этом не знает
	e := newTestEngine(t)
	quiz := e.seedQuiz(t, 2)
	e.join(t, quiz.ID, 1)
	qs := e.questions(t, quiz.ID)
	e.goLive(t, quiz.ID)
	_, err := e.answer(quiz.ID, 1, qs[0], intPtr(qs[0].CorrectOption), 1)
	require.NoError(t, err)

	other := NewFinalizer(e.config, e.deps)
	_, err = other.Finalize(context.Background(), quiz.ID, TriggerAdmin)
	require.NoError(t, err)

	// Act
	_, err = e.answer(quiz.ID, 1, entity.Question{ID: 9999}, intPtr(0), 1)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrSessionNotActive)
	_, cached := e.processor.quizzes.Load(quiz.ID)
	assert.False(t, cached)
}
