package quizmanager

import (
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
)

// Триггеры завершения викторины
const (
	TriggerQuestionsExhausted = "questions_exhausted"
	TriggerWatchdog           = "watchdog"
	TriggerAllAnswered        = "all_answered"
	TriggerAdmin              = "admin"
)

// Config содержит настройки для всех компонентов движка викторины
type Config struct {
	RegistrationCutoff time.Duration // Регистрация закрывается за это время до начала
	CountdownDelay     time.Duration // Пауза между командой start и первым вопросом
	SessionDuration    time.Duration // Сторожевой таймер викторины
	QuestionInterval   time.Duration // Интервал между вопросами

	BasePoints  int   // Очки за мгновенный правильный ответ
	RankBonuses []int // Бонусы за 1, 2, 3 места

	FinalizeRetries       int           // Повторы финализации после сбоя хранилища
	FinalizeRetryInterval time.Duration // Базовый интервал между повторами
	AnswerDedupTTL        time.Duration // Время жизни ключа дедупликации ответа в кеше
	LeaderboardSize       int           // Сколько мест рассылать в событии лидерборда
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		RegistrationCutoff:    60 * time.Second,
		CountdownDelay:        2 * time.Minute,
		SessionDuration:       30 * time.Minute,
		QuestionInterval:      10 * time.Second,
		BasePoints:            10,
		RankBonuses:           []int{100, 75, 50},
		FinalizeRetries:       3,
		FinalizeRetryInterval: 2 * time.Second,
		AnswerDedupTTL:        time.Hour,
		LeaderboardSize:       10,
	}
}

// BonusForRank возвращает бонус за место (1-based), за пределами таблицы бонусов - ноль
func (c *Config) BonusForRank(rank int) int {
	if rank < 1 || rank > len(c.RankBonuses) {
		return 0
	}
	return c.RankBonuses[rank-1]
}

// Broadcaster рассылает события подписчикам викторины и отдельным пользователям.
// Отправка не блокирует вызывающего: медленные клиенты отключаются транспортом.
type Broadcaster interface {
	BroadcastEventToQuiz(quizID uint, eventType string, data interface{}) error
	SendEventToUser(userID uint, eventType string, data interface{}) error
}

// Notifier ставит уведомление в очередь и сразу возвращает управление
type Notifier interface {
	Notify(recipientID uint, notificationType, content, link string)
}

// Dependencies содержит зависимости движка викторины
type Dependencies struct {
	QuizRepo        repository.QuizRepository
	ParticipantRepo repository.ParticipantRepository
	ResultRepo      repository.ResultRepository
	UserRepo        repository.UserRepository
	TransactionRepo repository.TransactionRepository
	CacheRepo       repository.CacheRepository // может быть nil
	Broadcaster     Broadcaster
	Notifier        Notifier
	Clock           clock.Clock
}
