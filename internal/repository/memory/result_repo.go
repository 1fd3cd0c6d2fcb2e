package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository в памяти
type ResultRepo struct {
	s *Store
}

// SaveAnswer добавляет ответ и обновляет накопительную запись участника
func (r *ResultRepo) SaveAnswer(_ context.Context, answer *entity.UserAnswer) (*entity.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[answer.QuizID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !q.Started || q.Ended {
		return nil, apperrors.ErrSessionNotActive
	}

	key := answerKey{answer.QuizID, answer.UserID, answer.QuestionID}
	if _, exists := r.s.answers[key]; exists {
		return nil, apperrors.ErrDuplicateAnswer
	}
	r.s.nextAnswerID++
	answer.ID = r.s.nextAnswerID
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now()
	}
	stored := *answer
	r.s.answers[key] = &stored

	rk := participantKey{answer.QuizID, answer.UserID}
	res, ok := r.s.results[rk]
	if !ok {
		r.s.nextResultID++
		res = &entity.Result{
			ID:        r.s.nextResultID,
			QuizID:    answer.QuizID,
			UserID:    answer.UserID,
			CreatedAt: answer.CreatedAt,
		}
		r.s.results[rk] = res
	}
	res.TotalScore += answer.Points
	res.QuestionsAnswered++
	res.TotalTimeTaken += answer.TimeTakenSec
	if answer.IsCorrect {
		res.CorrectAnswers++
	}
	res.UpdatedAt = answer.CreatedAt

	c := *res
	return &c, nil
}

// GetUserAnswers возвращает ответы пользователя в порядке поступления
func (r *ResultRepo) GetUserAnswers(_ context.Context, quizID, userID uint) ([]entity.UserAnswer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []entity.UserAnswer
	for k, a := range r.s.answers {
		if k.quizID == quizID && k.userID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetUserResult возвращает накопительную запись участника
func (r *ResultRepo) GetUserResult(_ context.Context, quizID, userID uint) (*entity.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	res, ok := r.s.results[participantKey{quizID, userID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *res
	return &c, nil
}

// GetQuizResults возвращает записи участников по месту, до финализации - по user_id
func (r *ResultRepo) GetQuizResults(_ context.Context, quizID uint) ([]entity.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.quizResultsLocked(quizID), nil
}

func (r *ResultRepo) quizResultsLocked(quizID uint) []entity.Result {
	var out []entity.Result
	for k, res := range r.s.results {
		if k.quizID == quizID {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// FinalizeQuiz атомарно записывает итог викторины
func (r *ResultRepo) FinalizeQuiz(_ context.Context, quizID uint, finalizedAt time.Time, rank repository.RankFunc) (*entity.SessionOutcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[quizID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if q.Ended {
		return nil, apperrors.ErrAlreadyFinalized
	}

	standings := rank(copyQuiz(q), r.quizResultsLocked(quizID))
	at := finalizedAt
	for i := range standings {
		st := &standings[i]
		st.FinalizedAt = &at
		st.UpdatedAt = finalizedAt
		stored := *st
		r.s.results[participantKey{quizID, st.UserID}] = &stored

		r.s.ensureUser(st.UserID).ApplyResult(st)
	}

	outcome := &entity.SessionOutcome{QuizID: quizID, Standings: standings, FinalizedAt: finalizedAt}
	q.ApplyWinners(outcome)
	q.Ended = true
	q.EndedAt = &at
	q.Status = entity.QuizStatusCompleted
	q.UpdatedAt = finalizedAt
	return outcome, nil
}
