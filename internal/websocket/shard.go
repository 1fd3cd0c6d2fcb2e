package websocket

import (
	"log"
	"sync"
)

// Shard представляет подмножество клиентов хаба.
// Клиент попадает в шард по UserID, у пользователя одно соединение на инстанс.
type Shard struct {
	id int

	mu      sync.RWMutex
	clients map[*Client]struct{}
	users   map[uint]*Client

	// Индекс для быстрой рассылки по викторинам
	quizSubscriptions map[uint]map[*Client]struct{}
}

func newShard(id int) *Shard {
	return &Shard{
		id:                id,
		clients:           make(map[*Client]struct{}),
		users:             make(map[uint]*Client),
		quizSubscriptions: make(map[uint]map[*Client]struct{}),
	}
}

// register добавляет клиента. Старое соединение того же пользователя закрывается.
func (s *Shard) register(client *Client) {
	s.mu.Lock()
	old, replaced := s.users[client.UserID]
	if replaced && old != client {
		s.removeLocked(old)
	}
	s.clients[client] = struct{}{}
	s.users[client.UserID] = client
	s.mu.Unlock()

	activeConnections.Inc()
	if replaced && old != client {
		log.Printf("[Shard %d] Пользователь %d переподключился, старое соединение %s закрыто", s.id, client.UserID, old.ConnectionID)
		old.closeConn()
	}
}

// unregister удаляет клиента, если он еще зарегистрирован
func (s *Shard) unregister(client *Client) bool {
	s.mu.Lock()
	_, ok := s.clients[client]
	if ok {
		s.removeLocked(client)
	}
	s.mu.Unlock()
	return ok
}

func (s *Shard) removeLocked(client *Client) {
	s.unsubscribeLocked(client)
	delete(s.clients, client)
	if s.users[client.UserID] == client {
		delete(s.users, client.UserID)
	}
	client.closeSend()
	activeConnections.Dec()
}

// subscribe переносит подписку клиента на викторину quizID
func (s *Shard) subscribe(client *Client, quizID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; !ok {
		return
	}
	s.unsubscribeLocked(client)
	subs, ok := s.quizSubscriptions[quizID]
	if !ok {
		subs = make(map[*Client]struct{})
		s.quizSubscriptions[quizID] = subs
	}
	subs[client] = struct{}{}
	client.setQuizID(quizID)
}

func (s *Shard) unsubscribe(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked(client)
}

func (s *Shard) unsubscribeLocked(client *Client) {
	quizID := client.QuizID()
	if quizID == 0 {
		return
	}
	if subs, ok := s.quizSubscriptions[quizID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(s.quizSubscriptions, quizID)
		}
	}
	client.setQuizID(0)
}

// broadcastToQuiz отправляет сообщение подписчикам викторины и возвращает число получателей
func (s *Shard) broadcastToQuiz(quizID uint, message []byte) int {
	s.mu.RLock()
	targets := make([]*Client, 0, len(s.quizSubscriptions[quizID]))
	for c := range s.quizSubscriptions[quizID] {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	return s.deliver(targets, message)
}

// sendToUser отправляет сообщение пользователю, если он подключен к этому шарду
func (s *Shard) sendToUser(userID uint, message []byte) bool {
	s.mu.RLock()
	client, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return s.deliver([]*Client{client}, message) == 1
}

// deliver не блокируется: клиент с переполненным буфером отключается
func (s *Shard) deliver(targets []*Client, message []byte) int {
	sent := 0
	for _, c := range targets {
		if c.trySend(message) {
			sent++
			continue
		}
		if s.unregister(c) {
			log.Printf("[Shard %d] Буфер клиента %d (Conn: %s) переполнен, соединение закрыто", s.id, c.UserID, c.ConnectionID)
			slowClientsDropped.Inc()
			c.closeConn()
		}
	}
	if sent > 0 {
		messagesSent.Add(float64(sent))
	}
	return sent
}

func (s *Shard) subscribers(quizID uint) []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint, 0, len(s.quizSubscriptions[quizID]))
	for c := range s.quizSubscriptions[quizID] {
		out = append(out, c.UserID)
	}
	return out
}

func (s *Shard) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// closeAll закрывает все соединения шарда
func (s *Shard) closeAll() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
		s.removeLocked(c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.closeConn()
	}
}
