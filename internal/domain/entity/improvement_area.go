package entity

import "time"

// ImprovementArea - тема, в которой пользователь ошибается. Count растет при каждой ошибке.
type ImprovementArea struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_improvement_user_tag" json:"user_id"`
	Tag       string    `gorm:"size:100;not null;uniqueIndex:idx_improvement_user_tag" json:"tag"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ImprovementArea) TableName() string {
	return "improvement_areas"
}
