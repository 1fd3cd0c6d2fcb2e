package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository в памяти
type UserRepo struct {
	s *Store
}

// Create сохраняет профиль пользователя (ID задается внешним сервисом профилей)
func (r *UserRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; exists {
		return apperrors.ErrConflict
	}
	if user.Level == "" {
		user.Level = entity.LevelForScore(user.CumulativeScore)
	}
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

// GetByID возвращает профиль пользователя
func (r *UserRepo) GetByID(_ context.Context, id uint) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *u
	return &c, nil
}

// GetByIDs возвращает найденные профили, отсутствующие пропускаются
func (r *UserRepo) GetByIDs(_ context.Context, ids []uint) ([]entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]entity.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

// IncrementImprovementAreas увеличивает счетчик каждой темы
func (r *UserRepo) IncrementImprovementAreas(_ context.Context, userID uint, tags []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	for _, tag := range tags {
		key := improvementKey{userID, tag}
		area, ok := r.s.improvements[key]
		if !ok {
			r.s.nextImprovementID++
			area = &entity.ImprovementArea{ID: r.s.nextImprovementID, UserID: userID, Tag: tag}
			r.s.improvements[key] = area
		}
		area.Count++
		area.UpdatedAt = now
	}
	return nil
}

// GetImprovementAreas возвращает темы пользователя, самые частые ошибки первыми
func (r *UserRepo) GetImprovementAreas(_ context.Context, userID uint, limit int) ([]entity.ImprovementArea, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []entity.ImprovementArea
	for k, a := range r.s.improvements {
		if k.userID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
