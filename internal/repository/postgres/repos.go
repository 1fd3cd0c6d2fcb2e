package postgres

import "github.com/yourusername/quiz-engine/internal/domain/repository"

var (
	_ repository.QuizRepository         = (*QuizRepo)(nil)
	_ repository.ParticipantRepository  = (*ParticipantRepo)(nil)
	_ repository.ResultRepository       = (*ResultRepo)(nil)
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.TransactionRepository  = (*TransactionRepo)(nil)
	_ repository.NotificationRepository = (*NotificationRepo)(nil)
)
