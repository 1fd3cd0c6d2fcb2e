package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	defaultWriteWait = 10 * time.Second

	// Время ожидания следующего pong от клиента.
	defaultPongWait = 60 * time.Second

	defaultMaxMessageSize = 4096

	// Размер буфера исходящих сообщений. Переполнение означает медленного клиента.
	defaultClientBufferSize = 64
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	BufferSize     int
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PongWait:       defaultPongWait,
		WriteWait:      defaultWriteWait,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	return c
}

// pingPeriod - периодичность ping, должна быть меньше PongWait
func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// MessageHandler обрабатывает входящее сообщение клиента.
// Ошибка означает, что соединение нужно закрыть.
type MessageHandler func(message []byte, client *Client) error

// Client является посредником между WebSocket соединением и хабом.
type Client struct {
	// ID пользователя из проверенного токена
	UserID uint

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub    *ShardedHub
	conn   *websocket.Conn
	config ClientConfig

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг, указывающий что канал send закрыт (для предотвращения panic)
	sendClosed atomic.Bool

	// ID викторины, на которую подписан клиент (0 - не подписан)
	currentQuizID atomic.Uint32

	lastActivity atomic.Int64
}

// NewClient создает нового клиента
func NewClient(hub *ShardedHub, conn *websocket.Conn, userID uint, config ClientConfig) *Client {
	config = config.withDefaults()
	c := &Client{
		UserID:       userID,
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		config:       config,
		send:         make(chan []byte, config.BufferSize),
	}
	c.touch()
	return c
}

// QuizID возвращает ID текущей викторины клиента
func (c *Client) QuizID() uint {
	return uint(c.currentQuizID.Load())
}

func (c *Client) setQuizID(quizID uint) {
	c.currentQuizID.Store(uint32(quizID))
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity возвращает время последнего сообщения или pong от клиента
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// trySend кладет сообщение в буфер клиента, не блокируясь
func (c *Client) trySend(message []byte) (ok bool) {
	if c.sendClosed.Load() {
		return false
	}
	// закрытие канала между проверкой и отправкой
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend безопасно закрывает канал send (только один раз)
func (c *Client) closeSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

func (c *Client) closeConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Run регистрирует клиента в хабе и запускает горутины чтения и записи.
// Возвращает управление сразу.
func (c *Client) Run(handler MessageHandler) {
	c.hub.RegisterClient(c)
	go c.writePump()
	go c.readPump(handler)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		c.hub.UnregisterClient(c)
		c.closeConn()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Ошибка чтения (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}
			return
		}
		c.touch()
		messagesReceived.Inc()

		if err := safeHandleMessage(message, c, handler); err != nil {
			log.Printf("[WebSocket] Ошибка обработчика (UserID: %d, ConnID: %s): %v. Закрываем соединение.",
				c.UserID, c.ConnectionID, err)
			return
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover
func safeHandleMessage(message []byte, client *Client, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocket] PANIC в обработчике сообщения UserID: %d, ConnID: %s: %v\n%s",
				client.UserID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if handler == nil {
		return nil
	}
	return handler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.pingPeriod())
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				// хаб закрыл канал клиента
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Ошибка записи (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
