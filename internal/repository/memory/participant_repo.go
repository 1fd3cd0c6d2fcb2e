package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository в памяти
type ParticipantRepo struct {
	s *Store
}

// registrationOpenLocked проверяет, что отсчет еще не объявлен. Вызывается под s.mu.
func (r *ParticipantRepo) registrationOpenLocked(quizID uint) error {
	q, ok := r.s.quizzes[quizID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if q.CountdownStartedAt != nil || q.Started || q.Ended {
		return apperrors.ErrRegistrationClosed
	}
	return nil
}

// Create регистрирует участника
func (r *ParticipantRepo) Create(_ context.Context, participant *entity.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.registrationOpenLocked(participant.QuizID); err != nil {
		return err
	}
	key := participantKey{participant.QuizID, participant.UserID}
	if _, exists := r.s.participants[key]; exists {
		return apperrors.ErrAlreadyRegistered
	}
	r.s.nextParticipantID++
	participant.ID = r.s.nextParticipantID
	if participant.RegisteredAt.IsZero() {
		participant.RegisteredAt = time.Now()
	}
	participant.UpdatedAt = participant.RegisteredAt
	c := *participant
	r.s.participants[key] = &c
	r.s.ensureUser(participant.UserID)
	return nil
}

// Get возвращает регистрацию пользователя
func (r *ParticipantRepo) Get(_ context.Context, quizID, userID uint) (*entity.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.participants[participantKey{quizID, userID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *p
	return &c, nil
}

// ListByQuiz возвращает всех участников викторины
func (r *ParticipantRepo) ListByQuiz(_ context.Context, quizID uint) ([]entity.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []entity.Participant
	for k, p := range r.s.participants {
		if k.quizID == quizID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Delete отменяет регистрацию
func (r *ParticipantRepo) Delete(_ context.Context, quizID, userID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.registrationOpenLocked(quizID); err != nil {
		return err
	}
	key := participantKey{quizID, userID}
	if _, ok := r.s.participants[key]; !ok {
		return apperrors.ErrNotParticipant
	}
	delete(r.s.participants, key)
	return nil
}

// ConfirmPayment отмечает оплату участника
func (r *ParticipantRepo) ConfirmPayment(_ context.Context, quizID, userID uint, transactionRef string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[participantKey{quizID, userID}]
	if !ok {
		return false, apperrors.ErrNotParticipant
	}
	if p.PaymentConfirmed {
		return false, nil
	}
	if err := r.registrationOpenLocked(quizID); err != nil {
		return false, err
	}
	p.PaymentConfirmed = true
	p.TransactionRef = transactionRef
	p.UpdatedAt = time.Now()
	return true, nil
}

// MarkJoined отмечает присутствие в комнате ожидания
func (r *ParticipantRepo) MarkJoined(_ context.Context, quizID, userID uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[participantKey{quizID, userID}]
	if !ok {
		return apperrors.ErrNotParticipant
	}
	if p.JoinedWaitingRoom {
		return nil
	}
	joined := at
	p.JoinedWaitingRoom = true
	p.JoinedAt = &joined
	p.UpdatedAt = at
	return nil
}

// CountPaid считает участников с подтвержденной оплатой
func (r *ParticipantRepo) CountPaid(_ context.Context, quizID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for k, p := range r.s.participants {
		if k.quizID == quizID && p.PaymentConfirmed {
			n++
		}
	}
	return n, nil
}
