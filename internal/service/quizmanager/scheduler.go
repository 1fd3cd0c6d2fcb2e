package quizmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/metrics"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// SessionState - состояние викторины в планировщике
type SessionState int

const (
	StateScheduled SessionState = iota
	StateCountdownAnnounced
	StateLive
	StateQuestionsExhausted
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateCountdownAnnounced:
		return "countdown_announced"
	case StateLive:
		return "live"
	case StateQuestionsExhausted:
		return "questions_exhausted"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// sessionRun - таймеры и прогресс одной викторины на этом инстансе
type sessionRun struct {
	mu sync.Mutex

	quizID    uint
	questions []entity.Question
	state     SessionState
	startAt   time.Time
	next      int // индекс следующего вопроса
	retries   int

	startTimer    clock.Timer
	cadenceTimer  clock.Timer
	watchdogTimer clock.Timer
	retryTimer    clock.Timer
}

func (r *sessionRun) stopTimersLocked() {
	for _, t := range []clock.Timer{r.startTimer, r.cadenceTimer, r.watchdogTimer, r.retryTimer} {
		if t != nil {
			t.Stop()
		}
	}
	r.startTimer, r.cadenceTimer, r.watchdogTimer, r.retryTimer = nil, nil, nil, nil
}

// Scheduler ведет викторину по состояниям: отсчет, вопросы с фиксированным интервалом,
// завершение. Все пути завершения проходят через FinishSession и общий Finalizer.
type Scheduler struct {
	// Настройки
	config *Config

	// Зависимости
	deps      *Dependencies
	finalizer *Finalizer

	mu       sync.Mutex
	runs     map[uint]*sessionRun
	stopped  bool
	onFinish []func(quizID uint)
}

// NewScheduler создает новый планировщик викторин
func NewScheduler(config *Config, deps *Dependencies, finalizer *Finalizer) *Scheduler {
	return &Scheduler{
		config:    config,
		deps:      deps,
		finalizer: finalizer,
		runs:      make(map[uint]*sessionRun),
	}
}

// StartSession объявляет обратный отсчет и возвращает время начала викторины.
// Повторный вызов во время отсчета возвращает уже объявленное время.
func (s *Scheduler) StartSession(ctx context.Context, quizID uint) (time.Time, error) {
	quiz, err := s.deps.QuizRepo.GetWithQuestions(ctx, quizID)
	if err != nil {
		return time.Time{}, err
	}
	if quiz.Started || quiz.Ended {
		return time.Time{}, apperrors.ErrSessionAlreadyStarted
	}
	if len(quiz.Questions) == 0 {
		return time.Time{}, fmt.Errorf("%w: quiz has no questions", apperrors.ErrValidation)
	}

	now := s.deps.Clock.Now()
	announced, err := s.deps.QuizRepo.AnnounceCountdown(ctx, quizID, now, prizeDistribution)
	switch {
	case errors.Is(err, repository.ErrCountdownAlreadyAnnounced):
		if announced == nil || announced.CountdownStartedAt == nil {
			return time.Time{}, err
		}
		startAt := announced.CountdownStartedAt.Add(s.config.CountdownDelay)
		s.arm(quiz, startAt)
		s.sendStartNotifications(ctx, quizID, startAt)
		log.Printf("[Scheduler] Повторный старт викторины #%d, начало в %v", quizID, startAt)
		return startAt, nil
	case err != nil:
		return time.Time{}, err
	}

	startAt := now.Add(s.config.CountdownDelay)
	s.arm(quiz, startAt)

	event := CountdownStartedEvent{
		QuizID:           quizID,
		StartTime:        startAt,
		CountdownSeconds: int(s.config.CountdownDelay.Seconds()),
		PrizePool:        announced.PrizePool,
	}
	if err := s.deps.Broadcaster.BroadcastEventToQuiz(quizID, EventCountdownStarted, event); err != nil {
		log.Printf("[Scheduler] Ошибка рассылки отсчета викторины #%d: %v", quizID, err)
	}
	s.sendStartNotifications(ctx, quizID, startAt)

	log.Printf("[Scheduler] Объявлен отсчет викторины #%d, начало в %v, призовой фонд %s",
		quizID, startAt, announced.PrizePool.StringFixed(2))
	return startAt, nil
}

// FinishSession завершает викторину через общий финализатор и останавливает ее таймеры.
// Для уже завершенной викторины ничего не делает.
func (s *Scheduler) FinishSession(ctx context.Context, quizID uint, trigger string) error {
	outcome, err := s.finalizer.Finalize(ctx, quizID, trigger)
	if err != nil {
		return err
	}
	s.closeRun(quizID)
	s.notifyFinished(quizID)
	if outcome != nil {
		s.announceOutcome(outcome, trigger)
	}
	return nil
}

// OnFinish регистрирует обработчик, который вызывается после завершения викторины
// любым путем: вопросы закончились, сторожевой таймер, досрочно или администратором
func (s *Scheduler) OnFinish(fn func(quizID uint)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = append(s.onFinish, fn)
}

func (s *Scheduler) notifyFinished(quizID uint) {
	s.mu.Lock()
	hooks := append([]func(uint){}, s.onFinish...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(quizID)
	}
}

// State возвращает состояние викторины, если она ведется этим инстансом
func (s *Scheduler) State(quizID uint) (SessionState, bool) {
	s.mu.Lock()
	run, ok := s.runs[quizID]
	s.mu.Unlock()
	if !ok {
		return StateScheduled, false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.state, true
}

// Resume восстанавливает таймеры викторин, прерванных перезапуском процесса
func (s *Scheduler) Resume(ctx context.Context) error {
	quizzes, err := s.deps.QuizRepo.ListUnfinished(ctx)
	if err != nil {
		return err
	}

	now := s.deps.Clock.Now()
	for i := range quizzes {
		quiz, err := s.deps.QuizRepo.GetWithQuestions(ctx, quizzes[i].ID)
		if err != nil {
			log.Printf("[Scheduler] Не удалось загрузить викторину #%d для восстановления: %v", quizzes[i].ID, err)
			continue
		}

		if !quiz.Started {
			startAt := quiz.CountdownStartedAt.Add(s.config.CountdownDelay)
			s.arm(quiz, startAt)
			log.Printf("[Scheduler] Восстановлен отсчет викторины #%d, начало в %v", quiz.ID, startAt)
			continue
		}

		if quiz.EndTime != nil && !now.Before(*quiz.EndTime) {
			log.Printf("[Scheduler] Время викторины #%d истекло во время простоя, завершаем", quiz.ID)
			if err := s.FinishSession(ctx, quiz.ID, TriggerWatchdog); err != nil {
				log.Printf("[Scheduler] Ошибка завершения викторины #%d: %v", quiz.ID, err)
			}
			continue
		}
		s.resumeLive(quiz, now)
	}
	return nil
}

// Stop останавливает все таймеры. Незавершенные викторины продолжатся после Resume.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	runs := s.runs
	s.runs = make(map[uint]*sessionRun)
	s.mu.Unlock()

	for _, run := range runs {
		run.mu.Lock()
		if run.state == StateLive {
			metrics.SessionsLive.Dec()
		}
		run.stopTimersLocked()
		run.mu.Unlock()
	}
	log.Printf("[Scheduler] Остановлен, прервано викторин: %d", len(runs))
}

// arm создает ход викторины и заводит таймер старта, если его еще нет
func (s *Scheduler) arm(quiz *entity.Quiz, startAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, exists := s.runs[quiz.ID]; exists {
		return
	}

	run := &sessionRun{
		quizID:    quiz.ID,
		questions: quiz.Questions,
		state:     StateCountdownAnnounced,
		startAt:   startAt,
	}
	run.startTimer = s.deps.Clock.AfterFunc(startAt.Sub(s.deps.Clock.Now()), func() {
		s.goLive(run)
	})
	s.runs[quiz.ID] = run
}

// resumeLive продолжает рассылку вопросов с того места, где она остановилась
func (s *Scheduler) resumeLive(quiz *entity.Quiz, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, exists := s.runs[quiz.ID]; exists {
		return
	}

	startedAt := *quiz.ActualStartTime
	// вопрос k уходит в startedAt + k*interval
	sent := int(now.Sub(startedAt)/s.config.QuestionInterval) + 1
	if sent > len(quiz.Questions) {
		sent = len(quiz.Questions)
	}
	nextAt := startedAt.Add(time.Duration(sent) * s.config.QuestionInterval)

	run := &sessionRun{
		quizID:    quiz.ID,
		questions: quiz.Questions,
		state:     StateLive,
		startAt:   startedAt,
		next:      sent,
	}
	run.cadenceTimer = s.deps.Clock.AfterFunc(nextAt.Sub(now), func() { s.tick(run) })

	deadline := startedAt.Add(s.config.SessionDuration)
	if quiz.EndTime != nil {
		deadline = *quiz.EndTime
	}
	run.watchdogTimer = s.deps.Clock.AfterFunc(deadline.Sub(now), func() { s.finish(run, TriggerWatchdog) })
	s.runs[quiz.ID] = run
	metrics.SessionsLive.Inc()

	log.Printf("[Scheduler] Восстановлена викторина #%d, следующий вопрос %d/%d в %v",
		quiz.ID, sent+1, len(quiz.Questions), nextAt)
}

// goLive переводит викторину в Live и сразу отправляет первый вопрос
func (s *Scheduler) goLive(run *sessionRun) {
	run.mu.Lock()
	if run.state != StateCountdownAnnounced {
		run.mu.Unlock()
		return
	}
	run.startTimer = nil

	now := s.deps.Clock.Now()
	endTime := now.Add(s.config.SessionDuration)
	err := s.deps.QuizRepo.MarkStarted(context.Background(), run.quizID, now, endTime)
	if err != nil && !errors.Is(err, apperrors.ErrSessionAlreadyStarted) {
		run.retries++
		delay, exhausted := s.nextRetryDelay(run.retries)
		if exhausted && !errors.Is(err, apperrors.ErrStorage) {
			run.state = StateEnded
			run.mu.Unlock()
			s.dropRun(run)
			log.Printf("[Scheduler] ОШИБКА: викторину #%d запустить невозможно: %v", run.quizID, err)
			return
		}
		run.startTimer = s.deps.Clock.AfterFunc(delay, func() { s.goLive(run) })
		run.mu.Unlock()
		if exhausted {
			// Отсчет объявлен, регистрация закрыта: викторину нельзя бросить, повторяем дальше
			log.Printf("[Scheduler] ОШИБКА: викторина #%d не запущена после %d попыток: %v. Повтор через %v",
				run.quizID, run.retries, err, delay)
		} else {
			log.Printf("[Scheduler] Ошибка запуска викторины #%d: %v. Повтор через %v", run.quizID, err, delay)
		}
		return
	}

	run.retries = 0
	run.state = StateLive
	run.startAt = now
	run.watchdogTimer = s.deps.Clock.AfterFunc(s.config.SessionDuration, func() { s.finish(run, TriggerWatchdog) })
	run.mu.Unlock()

	metrics.SessionsLive.Inc()
	log.Printf("[Scheduler] Викторина #%d началась, вопросов: %d, окончание не позднее %v",
		run.quizID, len(run.questions), endTime)
	s.tick(run)
}

// tick отправляет следующий вопрос или, если вопросы закончились, завершает викторину
func (s *Scheduler) tick(run *sessionRun) {
	run.mu.Lock()
	if run.state != StateLive {
		run.mu.Unlock()
		return
	}
	run.cadenceTimer = nil

	if run.next >= len(run.questions) {
		run.state = StateQuestionsExhausted
		run.mu.Unlock()
		log.Printf("[Scheduler] Вопросы викторины #%d закончились", run.quizID)
		s.finish(run, TriggerQuestionsExhausted)
		return
	}

	q := run.questions[run.next]
	event := QuestionEvent{
		QuizID:      run.quizID,
		QuestionID:  q.ID,
		Number:      run.next + 1,
		Total:       len(run.questions),
		Text:        q.Text,
		Options:     q.Options,
		DurationSec: int(s.config.QuestionInterval.Seconds()),
		SentAt:      s.deps.Clock.Now(),
	}
	run.next++
	run.cadenceTimer = s.deps.Clock.AfterFunc(s.config.QuestionInterval, func() { s.tick(run) })
	run.mu.Unlock()

	if err := s.deps.Broadcaster.BroadcastEventToQuiz(run.quizID, EventQuestion, event); err != nil {
		log.Printf("[Scheduler] Ошибка рассылки вопроса %d викторины #%d: %v", event.Number, run.quizID, err)
	}
	metrics.QuestionsBroadcast.Inc()
}

// finish завершает викторину из таймера. Сбой хранилища повторяется с нарастающей паузой,
// сторожевой таймер при этом остается взведенным.
func (s *Scheduler) finish(run *sessionRun, trigger string) {
	err := s.FinishSession(context.Background(), run.quizID, trigger)
	if err == nil {
		return
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.state == StateEnded {
		return
	}
	run.retries++
	delay, exhausted := s.nextRetryDelay(run.retries)
	if exhausted && !errors.Is(err, apperrors.ErrStorage) {
		log.Printf("[Scheduler] ОШИБКА: финализация викторины #%d (%s) невозможна: %v", run.quizID, trigger, err)
		return
	}
	if run.retryTimer != nil {
		run.retryTimer.Stop()
	}
	run.retryTimer = s.deps.Clock.AfterFunc(delay, func() { s.finish(run, trigger) })
	if exhausted {
		log.Printf("[Scheduler] ОШИБКА: финализация викторины #%d (%s) не удалась после %d попыток: %v. Повтор через %v",
			run.quizID, trigger, run.retries, err, delay)
		return
	}
	log.Printf("[Scheduler] Ошибка финализации викторины #%d (%s): %v. Повтор через %v", run.quizID, trigger, err, delay)
}

// nextRetryDelay возвращает паузу перед повтором attempt. После FinalizeRetries попыток
// повторы идут с максимальной паузой, пока хранилище не восстановится.
func (s *Scheduler) nextRetryDelay(attempt int) (delay time.Duration, exhausted bool) {
	if attempt > s.config.FinalizeRetries {
		return s.retryDelay(s.config.FinalizeRetries + 1), true
	}
	return s.retryDelay(attempt), false
}

func (s *Scheduler) retryDelay(attempt int) time.Duration {
	base := s.config.FinalizeRetryInterval
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// closeRun останавливает таймеры завершенной викторины
func (s *Scheduler) closeRun(quizID uint) {
	s.mu.Lock()
	run, ok := s.runs[quizID]
	delete(s.runs, quizID)
	s.mu.Unlock()
	if !ok {
		return
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.state == StateLive || run.state == StateQuestionsExhausted {
		metrics.SessionsLive.Dec()
	}
	run.state = StateEnded
	run.stopTimersLocked()
}

func (s *Scheduler) dropRun(run *sessionRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[run.quizID] == run {
		delete(s.runs, run.quizID)
	}
}

// announceOutcome рассылает итоговую таблицу и событие завершения
func (s *Scheduler) announceOutcome(outcome *entity.SessionOutcome, trigger string) {
	size := len(outcome.Standings)
	if s.config.LeaderboardSize > 0 && size > s.config.LeaderboardSize {
		size = s.config.LeaderboardSize
	}
	entries := make([]LeaderboardEntry, 0, size)
	for i := 0; i < size; i++ {
		entries = append(entries, NewLeaderboardEntry(&outcome.Standings[i]))
	}

	leaderboard := LeaderboardEvent{
		QuizID:            outcome.QuizID,
		Entries:           entries,
		TotalParticipants: len(outcome.Standings),
	}
	if err := s.deps.Broadcaster.BroadcastEventToQuiz(outcome.QuizID, EventShowLeaderboard, leaderboard); err != nil {
		log.Printf("[Scheduler] Ошибка рассылки итогов викторины #%d: %v", outcome.QuizID, err)
	}

	ended := EndedEvent{QuizID: outcome.QuizID, EndedAt: outcome.FinalizedAt, Trigger: trigger}
	if err := s.deps.Broadcaster.BroadcastEventToQuiz(outcome.QuizID, EventEnded, ended); err != nil {
		log.Printf("[Scheduler] Ошибка рассылки завершения викторины #%d: %v", outcome.QuizID, err)
	}
}

// sendStartNotifications один раз уведомляет оплативших участников о скором начале
func (s *Scheduler) sendStartNotifications(ctx context.Context, quizID uint, startAt time.Time) {
	if s.deps.Notifier == nil {
		return
	}
	flipped, err := s.deps.QuizRepo.MarkStartNotificationSent(ctx, quizID)
	if err != nil {
		log.Printf("[Scheduler] Ошибка отметки рассылки для викторины #%d: %v", quizID, err)
		return
	}
	if !flipped {
		return
	}

	participants, err := s.deps.ParticipantRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		log.Printf("[Scheduler] Ошибка получения участников викторины #%d: %v", quizID, err)
		return
	}
	content := fmt.Sprintf("Викторина начнется в %s. Заходите в комнату ожидания!", startAt.UTC().Format("15:04:05 MST"))
	link := fmt.Sprintf("/quizzes/%d", quizID)
	for _, p := range participants {
		if !p.IsPaymentBacked() {
			continue
		}
		s.deps.Notifier.Notify(p.UserID, entity.NotificationQuizStarting, content, link)
	}
}
