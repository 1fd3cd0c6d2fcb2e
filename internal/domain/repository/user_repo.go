package repository

import (
	"context"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// UserRepository определяет методы для работы с профилями пользователей
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]entity.User, error)
	// IncrementImprovementAreas увеличивает счетчик каждой темы (upsert)
	IncrementImprovementAreas(ctx context.Context, userID uint, tags []string) error
	GetImprovementAreas(ctx context.Context, userID uint, limit int) ([]entity.ImprovementArea, error)
}
