package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create сохраняет копию профиля пользователя
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	if user.Level == "" {
		user.Level = entity.LevelForScore(user.CumulativeScore)
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return wrapErr("create user", err)
	}
	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

// GetByIDs возвращает найденных пользователей
func (r *UserRepo) GetByIDs(ctx context.Context, ids []uint) ([]entity.User, error) {
	if len(ids) == 0 {
		return []entity.User{}, nil
	}
	var users []entity.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrapErr("get users", err)
	}
	return users, nil
}

// IncrementImprovementAreas увеличивает счетчики тем через INSERT ... ON CONFLICT
func (r *UserRepo) IncrementImprovementAreas(ctx context.Context, userID uint, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	areas := make([]entity.ImprovementArea, 0, len(tags))
	for _, tag := range tags {
		areas = append(areas, entity.ImprovementArea{UserID: userID, Tag: tag, Count: 1})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "tag"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("improvement_areas.count + 1"),
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(&areas).Error
	return wrapErr("increment improvement areas", err)
}

// GetImprovementAreas возвращает темы пользователя, самые частые ошибки первыми
func (r *UserRepo) GetImprovementAreas(ctx context.Context, userID uint, limit int) ([]entity.ImprovementArea, error) {
	var areas []entity.ImprovementArea
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("count DESC, tag ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&areas).Error; err != nil {
		return nil, wrapErr("get improvement areas", err)
	}
	return areas, nil
}
