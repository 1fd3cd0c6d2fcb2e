package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// ResultService отдает итоги завершенных викторин
type ResultService struct {
	quizRepo   repository.QuizRepository
	resultRepo repository.ResultRepository
	userRepo   repository.UserRepository
	cacheRepo  repository.CacheRepository // может быть nil
	cacheTTL   time.Duration

	group singleflight.Group
}

// NewResultService создает новый сервис результатов
func NewResultService(
	quizRepo repository.QuizRepository,
	resultRepo repository.ResultRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
) *ResultService {
	return &ResultService{
		quizRepo:   quizRepo,
		resultRepo: resultRepo,
		userRepo:   userRepo,
		cacheRepo:  cacheRepo,
		cacheTTL:   cacheTTL,
	}
}

// ExportRow - строка выгрузки результатов
type ExportRow struct {
	Rank             int
	UserID           uint
	Username         string
	TotalScore       int
	AdditionalPoints int
	FinalScore       int
	CorrectAnswers   int
	TotalTimeTaken   int
	IsWinner         bool
	PrizeAmount      decimal.Decimal
}

func resultsCacheKey(quizID uint) string {
	return fmt.Sprintf("quiz:%d:results", quizID)
}

// GetResults возвращает итоговую таблицу. Итоги неизменны после финализации,
// поэтому кешируются, а одновременные промахи кеша склеиваются в один запрос к БД.
func (s *ResultService) GetResults(ctx context.Context, quizID uint) ([]entity.Result, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.Ended {
		return nil, apperrors.ErrSessionNotActive
	}

	key := resultsCacheKey(quizID)
	if s.cacheRepo != nil {
		var cached []entity.Result
		err := s.cacheRepo.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[ResultService] Ошибка чтения кеша %s: %v", key, err)
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		results, err := s.resultRepo.GetQuizResults(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if s.cacheRepo != nil {
			if err := s.cacheRepo.SetJSON(ctx, key, results, s.cacheTTL); err != nil {
				log.Printf("[ResultService] Ошибка записи кеша %s: %v", key, err)
			}
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.Result), nil
}

// GetUserResult возвращает запись пользователя в викторине
func (s *ResultService) GetUserResult(ctx context.Context, quizID, userID uint) (*entity.Result, error) {
	return s.resultRepo.GetUserResult(ctx, quizID, userID)
}

// GetUserAnswers возвращает ответы пользователя в викторине
func (s *ResultService) GetUserAnswers(ctx context.Context, quizID, userID uint) ([]entity.UserAnswer, error) {
	return s.resultRepo.GetUserAnswers(ctx, quizID, userID)
}

// ExportRows собирает итоговую таблицу вместе с именами пользователей
func (s *ResultService) ExportRows(ctx context.Context, quizID uint) ([]ExportRow, error) {
	results, err := s.GetResults(ctx, quizID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(results))
	for i, r := range results {
		ids[i] = r.UserID
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	rows := make([]ExportRow, len(results))
	for i, r := range results {
		rows[i] = ExportRow{
			Rank:             r.Rank,
			UserID:           r.UserID,
			Username:         names[r.UserID],
			TotalScore:       r.TotalScore,
			AdditionalPoints: r.AdditionalPoints,
			FinalScore:       r.FinalScore,
			CorrectAnswers:   r.CorrectAnswers,
			TotalTimeTaken:   r.TotalTimeTaken,
			IsWinner:         r.IsWinner,
			PrizeAmount:      r.PrizeAmount,
		}
	}
	return rows, nil
}
