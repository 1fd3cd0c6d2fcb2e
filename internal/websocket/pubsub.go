package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/yourusername/quiz-engine/internal/config"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Виды сообщений кластера
const (
	clusterQuiz = "quiz"
	clusterUser = "user"
)

// ClusterMessage - сообщение, передаваемое между инстансами
type ClusterMessage struct {
	Kind       string          `json:"kind"`
	QuizID     uint            `json:"quiz_id,omitempty"`
	UserID     uint            `json:"user_id,omitempty"`
	InstanceID string          `json:"instance_id"`
	Payload    json.RawMessage `json:"payload"`
}

// RedisPubSub реализует PubSubProvider поверх Redis Pub/Sub
type RedisPubSub struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisPubSub создает провайдер, используя существующий UniversalClient.
// Клиент закрывает его владелец.
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}
	return &RedisPubSub{client: client}, nil
}

// Publish публикует сообщение в указанный канал
func (p *RedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	if err := p.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на канал; возвращенный канал закрывается при отмене ctx
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs = append(p.subs, pubsub)
	p.mu.Unlock()

	out := make(chan []byte, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()

		redisCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Printf("[RedisPubSub] Подписка на канал '%s'", channel)
	return out, nil
}

// Close закрывает активные подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for _, s := range p.subs {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	p.subs = nil
	return lastErr
}

// ClusterHub пересылает события между инстансами. Доставка best effort:
// сбой Redis не влияет на локальных клиентов.
type ClusterHub struct {
	hub        *ShardedHub
	provider   PubSubProvider
	channel    string
	instanceID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClusterHub создает новый экземпляр ClusterHub
func NewClusterHub(hub *ShardedHub, provider PubSubProvider, cfg config.ClusterConfig) *ClusterHub {
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
		log.Printf("[ClusterHub] Instance ID не задан, сгенерирован: %s", instanceID)
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "quiz:events"
	}
	return &ClusterHub{
		hub:        hub,
		provider:   provider,
		channel:    channel,
		instanceID: instanceID,
	}
}

// InstanceID возвращает ID этого инстанса
func (ch *ClusterHub) InstanceID() string {
	return ch.instanceID
}

// Start подписывается на канал кластера
func (ch *ClusterHub) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := ch.provider.Subscribe(ctx, ch.channel)
	if err != nil {
		cancel()
		return err
	}
	ch.cancel = cancel

	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		for raw := range msgs {
			ch.handle(raw)
		}
	}()
	log.Printf("[ClusterHub] Запущен, инстанс %s, канал %s", ch.instanceID, ch.channel)
	return nil
}

// Stop отписывается и ждет завершения обработчика
func (ch *ClusterHub) Stop() {
	if ch.cancel != nil {
		ch.cancel()
	}
	ch.wg.Wait()
	if err := ch.provider.Close(); err != nil {
		log.Printf("[ClusterHub] Ошибка закрытия провайдера: %v", err)
	}
}

// PublishToQuiz отправляет событие викторины остальным инстансам
func (ch *ClusterHub) PublishToQuiz(ctx context.Context, quizID uint, payload []byte) error {
	return ch.publish(ctx, ClusterMessage{Kind: clusterQuiz, QuizID: quizID, Payload: payload})
}

// PublishToUser отправляет событие пользователя остальным инстансам
func (ch *ClusterHub) PublishToUser(ctx context.Context, userID uint, payload []byte) error {
	return ch.publish(ctx, ClusterMessage{Kind: clusterUser, UserID: userID, Payload: payload})
}

func (ch *ClusterHub) publish(ctx context.Context, msg ClusterMessage) error {
	msg.InstanceID = ch.instanceID
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ch.provider.Publish(ctx, ch.channel, data); err != nil {
		clusterMessages.WithLabelValues("out", "error").Inc()
		return err
	}
	clusterMessages.WithLabelValues("out", "ok").Inc()
	return nil
}

func (ch *ClusterHub) handle(raw []byte) {
	var msg ClusterMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		clusterMessages.WithLabelValues("in", "invalid").Inc()
		log.Printf("[ClusterHub] Некорректное сообщение кластера: %v", err)
		return
	}
	// свои сообщения уже доставлены локально
	if msg.InstanceID == ch.instanceID {
		return
	}

	switch msg.Kind {
	case clusterQuiz:
		ch.hub.BroadcastToQuiz(msg.QuizID, msg.Payload)
	case clusterUser:
		ch.hub.SendToUser(msg.UserID, msg.Payload)
	default:
		clusterMessages.WithLabelValues("in", "invalid").Inc()
		return
	}
	clusterMessages.WithLabelValues("in", "ok").Inc()
}
