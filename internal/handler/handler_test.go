package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/middleware"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
	"github.com/yourusername/quiz-engine/internal/repository/memory"
	"github.com/yourusername/quiz-engine/internal/service"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
	"github.com/yourusername/quiz-engine/internal/websocket"
	"github.com/yourusername/quiz-engine/pkg/auth"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const adminID uint = 99

const testWebhookSecret = "gateway-secret"

// testEnv - приложение целиком на хранилище в памяти и фейковых часах
type testEnv struct {
	store   *memory.Store
	clock   *clock.Fake
	jwt     *auth.JWTService
	manager *websocket.Manager
	qm      *service.QuizManager
	ws      *WSHandler
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	fake := clock.NewFake(testNow)
	jwtService, err := auth.NewJWTService("test-secret", "quiz-engine")
	require.NoError(t, err)

	wsManager := websocket.NewManager(websocket.NewShardedHub(4), nil)
	notifications := service.NewNotificationService(service.NotificationOptions{Workers: 1, QueueSize: 64},
		store.Notifications(), store.Users(), wsManager, nil, fake)

	cfg := quizmanager.DefaultConfig()
	qm := service.NewQuizManager(cfg, &quizmanager.Dependencies{
		QuizRepo:        store.Quizzes(),
		ParticipantRepo: store.Participants(),
		ResultRepo:      store.Results(),
		UserRepo:        store.Users(),
		TransactionRepo: store.Transactions(),
		CacheRepo:       store.Cache(),
		Broadcaster:     wsManager,
		Notifier:        notifications,
		Clock:           fake,
	})
	require.NoError(t, qm.Start(context.Background()))
	t.Cleanup(qm.Shutdown)

	wsHandler := NewWSHandler(wsManager, qm, jwtService, websocket.DefaultClientConfig(), []string{"*"})
	handlers := Handlers{
		Quiz: NewQuizHandler(
			service.NewQuizService(store.Quizzes(), cfg, fake),
			service.NewResultService(store.Quizzes(), store.Results(), store.Users(), store.Cache(), time.Hour),
			qm,
		),
		User:    NewUserHandler(service.NewUserService(store.Users()), notifications),
		Payment: NewPaymentHandler(service.NewPaymentService(store.Transactions(), store.Quizzes(), qm)),
		WS:      wsHandler,
	}
	router := NewRouter(RouterConfig{AllowedOrigins: []string{"*"}, MetricsEnabled: true, WebhookSecret: testWebhookSecret},
		handlers, middleware.NewAuthMiddleware(jwtService), middleware.NewRateLimiter(nil))

	return &testEnv{
		store:   store,
		clock:   fake,
		jwt:     jwtService,
		manager: wsManager,
		qm:      qm,
		ws:      wsHandler,
		router:  router,
	}
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	role := ""
	if userID == adminID {
		role = auth.RoleAdmin
	}
	token, err := e.jwt.GenerateToken(userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

// do выполняет запрос от имени пользователя (0 - без токена)
func (e *testEnv) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithHeaders(t, method, path, userID, body, nil)
}

// webhook отправляет уведомление шлюза с общим секретом
func (e *testEnv) webhook(t *testing.T, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithHeaders(t, http.MethodPost, "/api/payments/webhook", 0, body,
		map[string]string{middleware.WebhookSecretHeader: testWebhookSecret})
}

func (e *testEnv) doWithHeaders(t *testing.T, method, path string, userID uint, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// seedQuiz создает викторину из n вопросов с правильным вариантом 0
func (e *testEnv) seedQuiz(t *testing.T, n int) *entity.Quiz {
	t.Helper()
	ctx := context.Background()
	quiz := &entity.Quiz{Title: "Вечерняя викторина", ScheduledTime: testNow.Add(time.Hour)}
	for i := 0; i < n; i++ {
		quiz.Questions = append(quiz.Questions, entity.Question{
			Text:          "Вопрос",
			Options:       entity.StringArray{"a", "b", "c", "d"},
			CorrectOption: 0,
			Tags:          entity.StringArray{"история"},
		})
	}
	require.NoError(t, e.store.Quizzes().Create(ctx, quiz))
	full, err := e.store.Quizzes().GetWithQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	return full
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "Тело ответа: %s", w.Body.String())
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "Тело ответа: %s", w.Body.String())
}
