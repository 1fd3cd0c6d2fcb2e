package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_HandleMessageDispatches(t *testing.T) {
	// Arrange
	hub := NewShardedHub(1)
	m := NewManager(hub, nil)
	client := newTestClient(hub, 1, 8)

	var got struct {
		QuizID uint `json:"quiz_id"`
	}
	m.RegisterHandler(MessageSubscribe, func(data json.RawMessage, c *Client) error {
		require.NoError(t, json.Unmarshal(data, &got))
		m.SubscribeClientToQuiz(c, got.QuizID)
		return nil
	})

	// Act
	err := m.HandleMessage([]byte(`{"type":"quiz:subscribe","data":{"quiz_id":42}}`), client)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), got.QuizID)
	assert.Equal(t, uint(42), client.QuizID())
}

func TestManager_HandleMessageErrors(t *testing.T) {
	hub := NewShardedHub(1)
	m := NewManager(hub, nil)
	client := newTestClient(hub, 1, 8)
	m.RegisterHandler("fatal", func(json.RawMessage, *Client) error { return errors.New("boom") })

	t.Run("некорректный JSON закрывает соединение", func(t *testing.T) {
		assert.Error(t, m.HandleMessage([]byte(`not json`), client))
		assert.Equal(t, []string{ServerError}, eventTypes(t, drain(client)))
	})

	t.Run("неизвестный тип не закрывает соединение", func(t *testing.T) {
		assert.NoError(t, m.HandleMessage([]byte(`{"type":"nope"}`), client))
		assert.Equal(t, []string{ServerError}, eventTypes(t, drain(client)))
	})

	t.Run("ошибка обработчика возвращается", func(t *testing.T) {
		assert.EqualError(t, m.HandleMessage([]byte(`{"type":"fatal"}`), client), "boom")
	})
}

func TestManager_BroadcastEventToQuiz(t *testing.T) {
	hub := NewShardedHub(2)
	m := NewManager(hub, nil)
	client := newTestClient(hub, 5, 8)
	m.SubscribeClientToQuiz(client, 9)

	require.NoError(t, m.BroadcastEventToQuiz(9, "quiz:question", map[string]int{"number": 1}))
	require.NoError(t, m.SendEventToUser(5, "quiz:answer_result", map[string]bool{"is_correct": true}))

	msgs := drain(client)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"type":"quiz:question","data":{"number":1}}`, string(msgs[0]))
	assert.JSONEq(t, `{"type":"quiz:answer_result","data":{"is_correct":true}}`, string(msgs[1]))
	assert.Error(t, m.BroadcastEventToQuiz(9, "bad", make(chan int)), "несериализуемые данные")
}
