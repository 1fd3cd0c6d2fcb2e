package quizmanager

import (
	"sort"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// RankResults упорядочивает записи: больше очков выше, при равенстве выше тот,
// кто суммарно отвечал быстрее; полное совпадение разрешается по user_id.
// Места сплошные 1..N, бонус и приз назначаются по месту.
func RankResults(quiz *entity.Quiz, results []entity.Result, config *Config) []entity.Result {
	ranked := make([]entity.Result, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.TotalTimeTaken != b.TotalTimeTaken {
			return a.TotalTimeTaken < b.TotalTimeTaken
		}
		return a.UserID < b.UserID
	})

	for i := range ranked {
		r := &ranked[i]
		r.Rank = i + 1
		r.AdditionalPoints = config.BonusForRank(r.Rank)
		r.FinalScore = r.TotalScore + r.AdditionalPoints
		r.IsWinner = r.Rank <= 3
		r.PrizeAmount = quiz.PrizeForRank(r.Rank)
	}
	return ranked
}

// prizeDistribution считает призовой фонд викторины по числу оплативших участников
func prizeDistribution(quiz *entity.Quiz, paidCount int64) entity.PrizeDistribution {
	if !quiz.IsPaid {
		return entity.PrizeDistribution{PaidParticipants: paidCount}
	}
	return entity.ComputePrizeDistribution(quiz.EntryFee, paidCount, quiz.CommissionPercent, quiz.PrizeSplits())
}
