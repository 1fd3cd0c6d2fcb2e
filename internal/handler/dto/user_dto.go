package dto

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/quiz-engine/internal/domain/entity"
)

// UserProfileResponse - игровые показатели пользователя
type UserProfileResponse struct {
	ID              uint            `json:"id"`
	Username        string          `json:"username"`
	ProfilePicture  string          `json:"profile_picture,omitempty"`
	CumulativeScore int64           `json:"cumulative_score"` // Сумма итоговых очков за все викторины
	Level           string          `json:"level"`
	GamesPlayed     int64           `json:"games_played"`
	HighestScore    int64           `json:"highest_score"`
	WinsCount       int64           `json:"wins_count"`
	TotalPrizeWon   decimal.Decimal `json:"total_prize_won"`
}

// ImprovementAreaDTO - тема, в которой пользователь ошибается
type ImprovementAreaDTO struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"` // Количество ошибок по теме
}

// NotificationDTO - уведомление пользователя
type NotificationDTO struct {
	ID      uint   `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Link    string `json:"link,omitempty"`
	Status  string `json:"status"`
}

// NewUserProfileResponse создает DTO профиля
func NewUserProfileResponse(u *entity.User) *UserProfileResponse {
	return &UserProfileResponse{
		ID:              u.ID,
		Username:        u.Username,
		ProfilePicture:  u.ProfilePicture,
		CumulativeScore: u.CumulativeScore,
		Level:           u.Level,
		GamesPlayed:     u.GamesPlayed,
		HighestScore:    u.HighestScore,
		WinsCount:       u.WinsCount,
		TotalPrizeWon:   u.TotalPrizeWon,
	}
}

// NewImprovementAreaList создает слайс DTO тем
func NewImprovementAreaList(areas []entity.ImprovementArea) []ImprovementAreaDTO {
	list := make([]ImprovementAreaDTO, len(areas))
	for i, a := range areas {
		list[i] = ImprovementAreaDTO{Tag: a.Tag, Count: a.Count}
	}
	return list
}

// NewNotificationList создает слайс DTO уведомлений
func NewNotificationList(items []entity.Notification) []NotificationDTO {
	list := make([]NotificationDTO, len(items))
	for i, n := range items {
		list[i] = NotificationDTO{ID: n.ID, Type: n.Type, Content: n.Content, Link: n.Link, Status: n.Status}
	}
	return list
}
