package quizmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/metrics"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// Finalizer подводит итоги викторины ровно один раз.
// Внутри процесса вызовы для одной викторины сериализуются мьютексом,
// между инстансами - блокировкой строки викторины в FinalizeQuiz.
type Finalizer struct {
	config *Config
	deps   *Dependencies

	locks sync.Map // map[uint]*sync.Mutex
}

// NewFinalizer создает финализатор
func NewFinalizer(config *Config, deps *Dependencies) *Finalizer {
	return &Finalizer{config: config, deps: deps}
}

func (f *Finalizer) lockFor(quizID uint) *sync.Mutex {
	mu, _ := f.locks.LoadOrStore(quizID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Finalize ранжирует участников и сохраняет итоги.
// Возвращает (nil, nil), если викторина уже была завершена другим вызовом.
func (f *Finalizer) Finalize(ctx context.Context, quizID uint, trigger string) (*entity.SessionOutcome, error) {
	mu := f.lockFor(quizID)
	mu.Lock()
	defer mu.Unlock()

	quiz, err := f.deps.QuizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Ended {
		metrics.FinalizationsTotal.WithLabelValues(trigger, "noop").Inc()
		return nil, nil
	}
	if !quiz.Started {
		return nil, apperrors.ErrSessionNotActive
	}

	started := time.Now()
	outcome, err := f.deps.ResultRepo.FinalizeQuiz(ctx, quizID, f.deps.Clock.Now(), func(q *entity.Quiz, results []entity.Result) []entity.Result {
		return RankResults(q, results, f.config)
	})
	metrics.FinalizeDuration.Observe(time.Since(started).Seconds())

	if errors.Is(err, apperrors.ErrAlreadyFinalized) {
		metrics.FinalizationsTotal.WithLabelValues(trigger, "noop").Inc()
		log.Printf("[Finalizer] Викторина #%d уже завершена другим инстансом (триггер %s)", quizID, trigger)
		return nil, nil
	}
	if err != nil {
		metrics.FinalizationsTotal.WithLabelValues(trigger, "error").Inc()
		log.Printf("[Finalizer] Ошибка финализации викторины #%d (триггер %s): %v", quizID, trigger, err)
		return nil, err
	}

	metrics.FinalizationsTotal.WithLabelValues(trigger, "ok").Inc()
	log.Printf("[Finalizer] Викторина #%d завершена (триггер %s), участников в рейтинге: %d",
		quizID, trigger, len(outcome.Standings))

	f.notifyResults(outcome)
	return outcome, nil
}

// notifyResults ставит уведомления об итогах в очередь, не дожидаясь доставки
func (f *Finalizer) notifyResults(outcome *entity.SessionOutcome) {
	if f.deps.Notifier == nil {
		return
	}
	link := fmt.Sprintf("/quizzes/%d/results", outcome.QuizID)
	for i := range outcome.Standings {
		r := &outcome.Standings[i]
		content := fmt.Sprintf("Викторина завершена. Ваше место: %d, итоговый счет: %d", r.Rank, r.FinalScore)
		if r.IsWinner && r.PrizeAmount.IsPositive() {
			content += fmt.Sprintf(", приз: %s", r.PrizeAmount.StringFixed(2))
		}
		f.deps.Notifier.Notify(r.UserID, entity.NotificationQuizResults, content, link)
	}
}
