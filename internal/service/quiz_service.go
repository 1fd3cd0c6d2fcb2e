package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
)

const maxPageSize = 100

var hundred = decimal.NewFromInt(100)

// QuizService предоставляет методы для работы с викторинами
type QuizService struct {
	quizRepo repository.QuizRepository
	config   *quizmanager.Config
	clock    clock.Clock
}

// NewQuizService создает новый сервис викторин
func NewQuizService(quizRepo repository.QuizRepository, config *quizmanager.Config, clk clock.Clock) *QuizService {
	return &QuizService{
		quizRepo: quizRepo,
		config:   config,
		clock:    clk,
	}
}

// CreateQuiz проверяет и сохраняет викторину вместе с вопросами.
// Нулевые проценты распределения заменяются на 50/30/20.
func (s *QuizService) CreateQuiz(ctx context.Context, quiz *entity.Quiz) error {
	if quiz.PrizeSplitFirst == 0 && quiz.PrizeSplitSecond == 0 && quiz.PrizeSplitThird == 0 {
		quiz.PrizeSplitFirst = entity.DefaultPrizeSplitFirst
		quiz.PrizeSplitSecond = entity.DefaultPrizeSplitSecond
		quiz.PrizeSplitThird = entity.DefaultPrizeSplitThird
	}
	if err := s.validate(quiz); err != nil {
		return err
	}

	for i := range quiz.Questions {
		quiz.Questions[i].Position = i
	}
	quiz.Status = entity.QuizStatusScheduled
	quiz.QuestionCount = len(quiz.Questions)

	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	return nil
}

func (s *QuizService) validate(quiz *entity.Quiz) error {
	if strings.TrimSpace(quiz.Title) == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	deadline := quiz.RegistrationDeadline(s.config.RegistrationCutoff)
	if !deadline.After(s.clock.Now()) {
		return fmt.Errorf("%w: scheduled time must leave room for registration", apperrors.ErrValidation)
	}
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz must have at least one question", apperrors.ErrValidation)
	}
	for i := range quiz.Questions {
		if err := quiz.Questions[i].Validate(); err != nil {
			return fmt.Errorf("%w: question %d: %v", apperrors.ErrValidation, i+1, err)
		}
	}
	if !entity.ValidatePrizeSplits(quiz.PrizeSplits()) {
		return fmt.Errorf("%w: prize splits must be non-negative and sum to 100", apperrors.ErrValidation)
	}
	if quiz.IsPaid {
		if !quiz.EntryFee.IsPositive() {
			return fmt.Errorf("%w: paid quiz requires a positive entry fee", apperrors.ErrValidation)
		}
		if quiz.CommissionPercent.IsNegative() || quiz.CommissionPercent.GreaterThan(hundred) {
			return fmt.Errorf("%w: commission percent must be between 0 and 100", apperrors.ErrValidation)
		}
	}
	return nil
}

// GetQuiz возвращает викторину без вопросов
func (s *QuizService) GetQuiz(ctx context.Context, quizID uint) (*entity.Quiz, error) {
	return s.quizRepo.GetByID(ctx, quizID)
}

// ListQuizzes возвращает страницу викторин по фильтрам
func (s *QuizService) ListQuizzes(ctx context.Context, filters repository.QuizFilters, page, pageSize int) ([]entity.Quiz, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	} else if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.quizRepo.List(ctx, filters, pageSize, (page-1)*pageSize)
}
