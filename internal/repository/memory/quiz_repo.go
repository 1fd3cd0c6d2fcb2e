package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizRepository в памяти
type QuizRepo struct {
	s *Store
}

// Create сохраняет викторину вместе с вопросами
func (r *QuizRepo) Create(_ context.Context, quiz *entity.Quiz) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextQuizID++
	quiz.ID = r.s.nextQuizID
	now := time.Now()
	quiz.CreatedAt, quiz.UpdatedAt = now, now
	if quiz.Status == "" {
		quiz.Status = entity.QuizStatusScheduled
	}

	questions := make([]entity.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		r.s.nextQuestionID++
		quiz.Questions[i].ID = r.s.nextQuestionID
		quiz.Questions[i].QuizID = quiz.ID
		quiz.Questions[i].CreatedAt = now
		questions[i] = quiz.Questions[i]
	}
	quiz.QuestionCount = len(questions)

	r.s.quizzes[quiz.ID] = copyQuiz(quiz)
	r.s.questions[quiz.ID] = questions
	return nil
}

// GetByID возвращает викторину без вопросов
func (r *QuizRepo) GetByID(_ context.Context, id uint) (*entity.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q, ok := r.s.quizzes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyQuiz(q), nil
}

// GetWithQuestions возвращает викторину с вопросами в порядке Position
func (r *QuizRepo) GetWithQuestions(_ context.Context, id uint) (*entity.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q, ok := r.s.quizzes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := copyQuiz(q)
	c.Questions = append([]entity.Question(nil), r.s.questions[id]...)
	sort.SliceStable(c.Questions, func(i, j int) bool {
		return c.Questions[i].Position < c.Questions[j].Position
	})
	return c, nil
}

// List возвращает викторины по фильтрам, отсортированные по времени начала
func (r *QuizRepo) List(_ context.Context, filters repository.QuizFilters, limit, offset int) ([]entity.Quiz, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var all []entity.Quiz
	for _, q := range r.s.quizzes {
		if filters.Status != "" && q.Status != filters.Status {
			continue
		}
		if filters.DateFrom != nil && q.ScheduledTime.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && q.ScheduledTime.After(*filters.DateTo) {
			continue
		}
		all = append(all, *copyQuiz(q))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ScheduledTime.Equal(all[j].ScheduledTime) {
			return all[i].ID < all[j].ID
		}
		return all[i].ScheduledTime.Before(all[j].ScheduledTime)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []entity.Quiz{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// ListUnfinished возвращает викторины с объявленным отсчетом, которые еще не завершены
func (r *QuizRepo) ListUnfinished(_ context.Context) ([]entity.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []entity.Quiz
	for _, q := range r.s.quizzes {
		if q.CountdownStartedAt != nil && !q.Ended {
			out = append(out, *copyQuiz(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AnnounceCountdown фиксирует отсчет и призовой фонд
func (r *QuizRepo) AnnounceCountdown(_ context.Context, quizID uint, at time.Time, prize repository.PrizeFunc) (*entity.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[quizID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if q.Started || q.Ended {
		return copyQuiz(q), apperrors.ErrSessionAlreadyStarted
	}
	if q.CountdownStartedAt != nil {
		return copyQuiz(q), repository.ErrCountdownAlreadyAnnounced
	}

	var paid int64
	for k, p := range r.s.participants {
		if k.quizID == quizID && p.PaymentConfirmed {
			paid++
		}
	}
	prize(q, paid).ApplyTo(q)

	announced := at
	q.CountdownStartedAt = &announced
	q.Status = entity.QuizStatusCountdown
	q.UpdatedAt = at
	return copyQuiz(q), nil
}

// MarkStartNotificationSent переключает флаг рассылки
func (r *QuizRepo) MarkStartNotificationSent(_ context.Context, quizID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[quizID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if q.StartNotificationSent {
		return false, nil
	}
	q.StartNotificationSent = true
	return true, nil
}

// MarkStarted переключает started false→true
func (r *QuizRepo) MarkStarted(_ context.Context, quizID uint, startedAt, endTime time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[quizID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if q.Started {
		return apperrors.ErrSessionAlreadyStarted
	}
	start, end := startedAt, endTime
	q.Started = true
	q.ActualStartTime = &start
	q.EndTime = &end
	q.Status = entity.QuizStatusInProgress
	q.UpdatedAt = startedAt
	return nil
}
