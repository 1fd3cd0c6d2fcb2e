package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// clusterPublishTimeout ограничивает публикацию в Redis, чтобы медленный брокер
// не задерживал цикл вопросов
const clusterPublishTimeout = 2 * time.Second

// Manager обрабатывает WebSocket сообщения и рассылает события движка
type Manager struct {
	hub     *ShardedHub
	cluster *ClusterHub // nil - один инстанс

	mu             sync.RWMutex
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *ShardedHub, cluster *ClusterHub) *Manager {
	return &Manager{
		hub:            hub,
		cluster:        cluster,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// Hub возвращает хаб менеджера
func (m *Manager) Hub() *ShardedHub {
	return m.hub
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageHandler[eventType] = handler
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event inboundEvent
	if err := json.Unmarshal(message, &event); err != nil {
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return fmt.Errorf("invalid message from user %d: %w", client.UserID, err)
	}

	m.mu.RLock()
	handler, ok := m.messageHandler[event.Type]
	m.mu.RUnlock()
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
	return handler(event.Data, client)
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту.
// Соединение не закрывается.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	m.SendToClient(client, ServerError, map[string]string{
		"code":    code,
		"message": message,
	})
}

// SendToClient отправляет событие в конкретное соединение
func (m *Manager) SendToClient(client *Client, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("[WebSocketManager] Ошибка сериализации %s: %v", eventType, err)
		return
	}
	m.hub.getShard(client.UserID).deliver([]*Client{client}, payload)
}

// SubscribeClientToQuiz подписывает клиента на события викторины
func (m *Manager) SubscribeClientToQuiz(client *Client, quizID uint) {
	m.hub.Subscribe(client, quizID)
	log.Printf("[WebSocketManager] Клиент %d подписан на викторину %d", client.UserID, quizID)
}

// UnsubscribeClientFromQuiz отписывает клиента от текущей викторины
func (m *Manager) UnsubscribeClientFromQuiz(client *Client) {
	m.hub.Unsubscribe(client)
}

// BroadcastEventToQuiz отправляет событие всем клиентам, подписанным на викторину,
// на этом и остальных инстансах
func (m *Manager) BroadcastEventToQuiz(quizID uint, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event for quiz %d: %w", quizID, err)
	}

	m.hub.BroadcastToQuiz(quizID, payload)
	if m.cluster != nil {
		ctx, cancel := context.WithTimeout(context.Background(), clusterPublishTimeout)
		defer cancel()
		if err := m.cluster.PublishToQuiz(ctx, quizID, payload); err != nil {
			log.Printf("[WebSocketManager] Ошибка публикации %s викторины %d в кластер: %v", eventType, quizID, err)
		}
	}
	return nil
}

// SendEventToUser отправляет событие соединениям пользователя на всех инстансах
func (m *Manager) SendEventToUser(userID uint, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event for user %d: %w", userID, err)
	}

	m.hub.SendToUser(userID, payload)
	if m.cluster != nil {
		ctx, cancel := context.WithTimeout(context.Background(), clusterPublishTimeout)
		defer cancel()
		if err := m.cluster.PublishToUser(ctx, userID, payload); err != nil {
			log.Printf("[WebSocketManager] Ошибка публикации %s пользователю %d в кластер: %v", eventType, userID, err)
		}
	}
	return nil
}

// GetActiveSubscribers возвращает подписчиков викторины на этом инстансе
func (m *Manager) GetActiveSubscribers(quizID uint) []uint {
	return m.hub.GetActiveSubscribers(quizID)
}

// ClientCount возвращает количество подключенных клиентов
func (m *Manager) ClientCount() int {
	return m.hub.ClientCount()
}
