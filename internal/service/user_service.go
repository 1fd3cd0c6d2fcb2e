package service

import (
	"context"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
)

const defaultImprovementAreas = 10

// UserService предоставляет игровые показатели пользователей
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService создает новый сервис пользователей
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// GetProfile возвращает накопленный счет и уровень пользователя
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// GetImprovementAreas возвращает темы, в которых пользователь чаще ошибается
func (s *UserService) GetImprovementAreas(ctx context.Context, userID uint, limit int) ([]entity.ImprovementArea, error) {
	if limit < 1 || limit > maxPageSize {
		limit = defaultImprovementAreas
	}
	return s.userRepo.GetImprovementAreas(ctx, userID, limit)
}
