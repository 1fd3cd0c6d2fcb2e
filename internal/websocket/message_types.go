package websocket

// Типы сообщений от клиента
const (
	// MessageSubscribe подписывает соединение на события викторины
	MessageSubscribe = "quiz:subscribe"

	// MessageUnsubscribe отписывает соединение от текущей викторины
	MessageUnsubscribe = "quiz:unsubscribe"

	// MessageReady отмечает участника в комнате ожидания
	MessageReady = "user:ready"

	// MessageAnswer - ответ на вопрос
	MessageAnswer = "quiz:answer"

	// MessageHeartbeat - проверка соединения
	MessageHeartbeat = "user:heartbeat"
)

// Типы служебных сообщений сервера
const (
	ServerError      = "server:error"
	ServerHeartbeat  = "server:heartbeat"
	ServerSubscribed = "server:subscribed"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
