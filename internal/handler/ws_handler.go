package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
	"github.com/yourusername/quiz-engine/internal/service"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
	"github.com/yourusername/quiz-engine/internal/websocket"
	"github.com/yourusername/quiz-engine/pkg/auth"
)

// wsRequestTimeout ограничивает обработку одного сообщения клиента
const wsRequestTimeout = 5 * time.Second

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsManager    *websocket.Manager
	quizManager  *service.QuizManager
	jwtService   *auth.JWTService
	clientConfig websocket.ClientConfig
	upgrader     gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket и регистрирует обработчики сообщений
func NewWSHandler(
	wsManager *websocket.Manager,
	quizManager *service.QuizManager,
	jwtService *auth.JWTService,
	clientConfig websocket.ClientConfig,
	allowedOrigins []string,
) *WSHandler {
	handler := &WSHandler{
		wsManager:    wsManager,
		quizManager:  quizManager,
		jwtService:   jwtService,
		clientConfig: clientConfig,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}

	handler.registerMessageHandlers()
	return handler
}

// originChecker разрешает подключения без Origin (мобильные клиенты) и из списка разрешенных
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		log.Printf("[WSHandler] Отклонен недопустимый origin: %s", origin)
		return false
	}
}

// HandleConnection обрабатывает входящее WebSocket соединение: GET /ws?token=...
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// НЕ логируем токен
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token parameter"})
		return
	}

	claims, err := h.jwtService.ParseToken(token)
	if err != nil {
		log.Printf("[WSHandler] Недействительный токен: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.Printf("[WSHandler] Ошибка upgrade для пользователя #%d: %v", claims.UserID, err)
		return
	}

	log.Printf("[WSHandler] Соединение установлено для пользователя #%d", claims.UserID)
	client := websocket.NewClient(h.wsManager.Hub(), conn, claims.UserID, h.clientConfig)
	client.Run(h.wsManager.HandleMessage)
}

type quizRef struct {
	QuizID uint `json:"quiz_id"`
}

type wsAnswer struct {
	QuizID         uint `json:"quiz_id"`
	QuestionID     uint `json:"question_id"`
	SelectedOption *int `json:"selected_option"`
	TimeTakenSec   int  `json:"time_taken"`
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений.
// Ошибка разбора сообщения закрывает соединение, доменные ошибки отправляются клиенту.
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.MessageSubscribe, func(data json.RawMessage, client *websocket.Client) error {
		var ref quizRef
		if err := h.decode(client, websocket.MessageSubscribe, data, &ref); err != nil {
			return err
		}
		if ref.QuizID == 0 {
			h.wsManager.SendErrorToClient(client, "invalid_quiz", "quiz_id is required")
			return nil
		}
		h.wsManager.SubscribeClientToQuiz(client, ref.QuizID)
		h.wsManager.SendToClient(client, websocket.ServerSubscribed, ref)
		return nil
	})

	h.wsManager.RegisterHandler(websocket.MessageUnsubscribe, func(_ json.RawMessage, client *websocket.Client) error {
		h.wsManager.UnsubscribeClientFromQuiz(client)
		return nil
	})

	h.wsManager.RegisterHandler(websocket.MessageReady, func(data json.RawMessage, client *websocket.Client) error {
		var ref quizRef
		if err := h.decode(client, websocket.MessageReady, data, &ref); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsRequestTimeout)
		defer cancel()
		if err := h.quizManager.JoinWaitingRoom(ctx, ref.QuizID, client.UserID); err != nil {
			log.Printf("[WSHandler] Ошибка входа в комнату ожидания: пользователь #%d, викторина #%d: %v", client.UserID, ref.QuizID, err)
			h.wsManager.SendErrorToClient(client, errorCode(err), err.Error())
			return nil
		}
		// Участник в комнате ожидания получает события викторины
		h.wsManager.SubscribeClientToQuiz(client, ref.QuizID)
		h.wsManager.SendToClient(client, websocket.ServerSubscribed, ref)
		return nil
	})

	h.wsManager.RegisterHandler(websocket.MessageAnswer, func(data json.RawMessage, client *websocket.Client) error {
		var answer wsAnswer
		if err := h.decode(client, websocket.MessageAnswer, data, &answer); err != nil {
			return err
		}
		quizID := answer.QuizID
		if quizID == 0 {
			quizID = client.QuizID()
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsRequestTimeout)
		defer cancel()
		// Результат приходит событием quiz:answer_result
		_, err := h.quizManager.SubmitAnswer(ctx, quizmanager.SubmitAnswerRequest{
			QuizID:         quizID,
			UserID:         client.UserID,
			QuestionID:     answer.QuestionID,
			SelectedOption: answer.SelectedOption,
			TimeTakenSec:   answer.TimeTakenSec,
		})
		if err != nil {
			log.Printf("[WSHandler] Ответ пользователя #%d на вопрос #%d отклонен: %v", client.UserID, answer.QuestionID, err)
			h.wsManager.SendErrorToClient(client, errorCode(err), err.Error())
		}
		return nil
	})

	h.wsManager.RegisterHandler(websocket.MessageHeartbeat, func(_ json.RawMessage, client *websocket.Client) error {
		h.wsManager.SendToClient(client, websocket.ServerHeartbeat, map[string]int64{
			"timestamp": time.Now().UnixMilli(),
		})
		return nil
	})
}

func (h *WSHandler) decode(client *websocket.Client, eventType string, data json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[WSHandler] Ошибка парсинга %s от пользователя #%d: %v", eventType, client.UserID, err)
		h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse "+eventType)
		return err
	}
	return nil
}

// errorCode возвращает код ошибки для клиента по категории
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrDuplicateAnswer):
		return "duplicate_answer"
	case errors.Is(err, apperrors.ErrPaymentRequired):
		return "payment_required"
	case errors.Is(err, apperrors.ErrSessionNotActive):
		return "quiz_not_active"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation_error"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	}
	return "internal_error"
}
