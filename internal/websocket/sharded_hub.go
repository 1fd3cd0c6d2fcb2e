package websocket

import (
	"log"
	"sort"
)

const defaultShardCount = 16

// ShardedHub распределяет клиентов по шардам, чтобы рассылка и регистрация
// не упирались в одну блокировку
type ShardedHub struct {
	shards []*Shard
}

// NewShardedHub создает хаб с shardCount шардами
func NewShardedHub(shardCount int) *ShardedHub {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}
	h := &ShardedHub{shards: make([]*Shard, shardCount)}
	for i := range h.shards {
		h.shards[i] = newShard(i)
	}
	log.Printf("[ShardedHub] Создан хаб с %d шардами", shardCount)
	return h
}

func (h *ShardedHub) getShard(userID uint) *Shard {
	return h.shards[int(userID%uint(len(h.shards)))]
}

// RegisterClient регистрирует клиента в его шарде
func (h *ShardedHub) RegisterClient(client *Client) {
	h.getShard(client.UserID).register(client)
}

// UnregisterClient удаляет клиента и закрывает его канал отправки
func (h *ShardedHub) UnregisterClient(client *Client) {
	h.getShard(client.UserID).unregister(client)
}

// Subscribe подписывает клиента на события викторины (предыдущая подписка снимается)
func (h *ShardedHub) Subscribe(client *Client, quizID uint) {
	if quizID == 0 {
		h.Unsubscribe(client)
		return
	}
	h.getShard(client.UserID).subscribe(client, quizID)
}

// Unsubscribe снимает подписку клиента
func (h *ShardedHub) Unsubscribe(client *Client) {
	h.getShard(client.UserID).unsubscribe(client)
}

// BroadcastToQuiz рассылает сообщение локальным подписчикам викторины
func (h *ShardedHub) BroadcastToQuiz(quizID uint, message []byte) int {
	sent := 0
	for _, s := range h.shards {
		sent += s.broadcastToQuiz(quizID, message)
	}
	return sent
}

// SendToUser отправляет сообщение локальному соединению пользователя
func (h *ShardedHub) SendToUser(userID uint, message []byte) bool {
	return h.getShard(userID).sendToUser(userID, message)
}

// ClientCount возвращает количество подключенных клиентов
func (h *ShardedHub) ClientCount() int {
	n := 0
	for _, s := range h.shards {
		n += s.count()
	}
	return n
}

// GetActiveSubscribers возвращает ID пользователей, подписанных на викторину на этом инстансе
func (h *ShardedHub) GetActiveSubscribers(quizID uint) []uint {
	var out []uint
	for _, s := range h.shards {
		out = append(out, s.subscribers(quizID)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close закрывает все соединения
func (h *ShardedHub) Close() {
	for _, s := range h.shards {
		s.closeAll()
	}
	log.Println("[ShardedHub] Все соединения закрыты")
}
