package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// User - локальная копия профиля пользователя. Сам профиль ведет внешний сервис,
// здесь хранятся только игровые показатели.
type User struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Username        string          `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email           string          `gorm:"size:100;not null;default:''" json:"-"`
	ProfilePicture  string          `gorm:"size:255;not null;default:''" json:"profile_picture"`
	Language        string          `gorm:"size:5;not null;default:'ru'" json:"language"`
	CumulativeScore int64           `gorm:"not null;default:0;index:idx_users_leaderboard" json:"cumulative_score"`
	Level           string          `gorm:"size:20;not null;default:'Beginner'" json:"level"`
	GamesPlayed     int64           `gorm:"not null;default:0" json:"games_played"`
	HighestScore    int64           `gorm:"not null;default:0" json:"highest_score"`
	WinsCount       int64           `gorm:"not null;default:0" json:"wins_count"`
	TotalPrizeWon   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_prize_won"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// ApplyResult добавляет итог викторины к показателям пользователя и пересчитывает уровень
func (u *User) ApplyResult(r *Result) {
	u.CumulativeScore += int64(r.FinalScore)
	u.GamesPlayed++
	if int64(r.FinalScore) > u.HighestScore {
		u.HighestScore = int64(r.FinalScore)
	}
	if r.IsWinner {
		u.WinsCount++
		u.TotalPrizeWon = u.TotalPrizeWon.Add(r.PrizeAmount)
	}
	u.Level = LevelForScore(u.CumulativeScore)
}
