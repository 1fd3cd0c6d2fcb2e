package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/internal/websocket"
)

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, server *httptest.Server, token string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *gorillaws.Conn, eventType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": eventType, "data": data}))
}

// readUntil читает сообщения, пока не встретится нужный тип
func readUntil(t *testing.T, conn *gorillaws.Conn, eventType string) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wsEnvelope
		require.NoError(t, conn.ReadJSON(&msg), "Ожидалось сообщение %s", eventType)
		if msg.Type == eventType {
			return msg
		}
	}
}

func TestWSHandler_RejectsMissingOrInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/ws", 0, nil)
	assertStatus(t, w, http.StatusUnauthorized)

	w = env.do(t, http.MethodGet, "/ws?token=broken", 0, nil)
	assertStatus(t, w, http.StatusUnauthorized)
}

func TestWSHandler_SubscribeAndReceiveQuizEvents(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()
	conn := dialWS(t, server, env.token(t, 7))

	// Act
	sendWS(t, conn, websocket.MessageSubscribe, map[string]uint{"quiz_id": 42})
	readUntil(t, conn, websocket.ServerSubscribed)

	// Assert
	assert.Equal(t, []uint{7}, env.manager.GetActiveSubscribers(42))
	require.NoError(t, env.manager.BroadcastEventToQuiz(42, "quiz:question", map[string]int{"question_number": 1}))
	msg := readUntil(t, conn, "quiz:question")
	assert.JSONEq(t, `{"question_number":1}`, string(msg.Data))

	sendWS(t, conn, websocket.MessageUnsubscribe, nil)
	sendWS(t, conn, websocket.MessageHeartbeat, nil)
	readUntil(t, conn, websocket.ServerHeartbeat)
	assert.Empty(t, env.manager.GetActiveSubscribers(42), "После отписки подписчиков нет")
}

func TestWSHandler_ReadyJoinsWaitingRoom(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(t, 1)
	_, err := env.qm.Register(context.Background(), quiz.ID, 3)
	require.NoError(t, err)

	server := httptest.NewServer(env.router)
	defer server.Close()
	conn := dialWS(t, server, env.token(t, 3))

	sendWS(t, conn, websocket.MessageReady, map[string]uint{"quiz_id": quiz.ID})
	readUntil(t, conn, websocket.ServerSubscribed)

	p, err := env.store.Participants().Get(context.Background(), quiz.ID, 3)
	require.NoError(t, err)
	assert.True(t, p.JoinedWaitingRoom, "Участник должен быть отмечен в комнате ожидания")
	assert.Equal(t, []uint{3}, env.manager.GetActiveSubscribers(quiz.ID))
}

func TestWSHandler_AnswerErrorsAreReported(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(t, 1)

	server := httptest.NewServer(env.router)
	defer server.Close()
	conn := dialWS(t, server, env.token(t, 4))

	// Викторина не идет - соединение остается открытым, приходит server:error
	sendWS(t, conn, websocket.MessageAnswer, map[string]interface{}{
		"quiz_id": quiz.ID, "question_id": quiz.Questions[0].ID, "selected_option": 0,
	})
	msg := readUntil(t, conn, websocket.ServerError)
	assert.Contains(t, string(msg.Data), "quiz_not_active")

	sendWS(t, conn, "quiz:unknown", nil)
	msg = readUntil(t, conn, websocket.ServerError)
	assert.Contains(t, string(msg.Data), "unknown_message_type")

	sendWS(t, conn, websocket.MessageHeartbeat, nil)
	readUntil(t, conn, websocket.ServerHeartbeat)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://quiz.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "Без Origin подключение разрешено")

	req.Header.Set("Origin", "https://quiz.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
