// Package memory - реализация репозиториев в памяти процесса. Используется драйвером
// хранилища "memory" (одиночный инстанс, без Postgres) и в тестах сервисов.
package memory

import (
	"sync"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
)

var (
	_ repository.QuizRepository         = (*QuizRepo)(nil)
	_ repository.ParticipantRepository  = (*ParticipantRepo)(nil)
	_ repository.ResultRepository       = (*ResultRepo)(nil)
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.TransactionRepository  = (*TransactionRepo)(nil)
	_ repository.NotificationRepository = (*NotificationRepo)(nil)
	_ repository.CacheRepository        = (*CacheRepo)(nil)
)

type participantKey struct {
	quizID uint
	userID uint
}

type answerKey struct {
	quizID     uint
	userID     uint
	questionID uint
}

type improvementKey struct {
	userID uint
	tag    string
}

// Store хранит все таблицы под одним мьютексом, поэтому операции, которые в Postgres
// выполняются в транзакции, здесь атомарны.
type Store struct {
	mu sync.RWMutex

	nextQuizID         uint
	nextQuestionID     uint
	nextParticipantID  uint
	nextAnswerID       uint
	nextResultID       uint
	nextTransactionID  uint
	nextNotificationID uint
	nextImprovementID  uint

	quizzes       map[uint]*entity.Quiz
	questions     map[uint][]entity.Question
	participants  map[participantKey]*entity.Participant
	answers       map[answerKey]*entity.UserAnswer
	results       map[participantKey]*entity.Result
	users         map[uint]*entity.User
	improvements  map[improvementKey]*entity.ImprovementArea
	transactions  map[string]*entity.Transaction
	notifications map[uint]*entity.Notification
	notifKeys     map[string]uint

	cache *CacheRepo
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		quizzes:       make(map[uint]*entity.Quiz),
		questions:     make(map[uint][]entity.Question),
		participants:  make(map[participantKey]*entity.Participant),
		answers:       make(map[answerKey]*entity.UserAnswer),
		results:       make(map[participantKey]*entity.Result),
		users:         make(map[uint]*entity.User),
		improvements:  make(map[improvementKey]*entity.ImprovementArea),
		transactions:  make(map[string]*entity.Transaction),
		notifications: make(map[uint]*entity.Notification),
		notifKeys:     make(map[string]uint),
		cache:         newCacheRepo(),
	}
}

// Quizzes возвращает репозиторий викторин
func (s *Store) Quizzes() *QuizRepo { return &QuizRepo{s: s} }

// Participants возвращает репозиторий регистраций
func (s *Store) Participants() *ParticipantRepo { return &ParticipantRepo{s: s} }

// Results возвращает репозиторий ответов и результатов
func (s *Store) Results() *ResultRepo { return &ResultRepo{s: s} }

// Users возвращает репозиторий пользователей
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Transactions возвращает репозиторий платежей
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

// Notifications возвращает outbox уведомлений
func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{s: s} }

// Cache возвращает кеш в памяти
func (s *Store) Cache() *CacheRepo { return s.cache }

// copyQuiz возвращает независимую копию викторины (без вопросов)
func copyQuiz(q *entity.Quiz) *entity.Quiz {
	c := *q
	c.Questions = nil
	return &c
}

// ensureUser возвращает профиль пользователя, создавая пустой при первом обращении
func (s *Store) ensureUser(userID uint) *entity.User {
	u, ok := s.users[userID]
	if !ok {
		u = &entity.User{ID: userID, Level: entity.LevelForScore(0)}
		s.users[userID] = u
	}
	return u
}
