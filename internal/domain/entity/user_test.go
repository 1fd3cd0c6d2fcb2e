package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int64
		want  string
	}{
		{0, "Beginner"},
		{499, "Beginner"},
		{500, "Novice"},
		{1499, "Novice"},
		{3000, "Adept"},
		{12000, "Master"},
		{29999, "Legend"},
		{30000, "Godlike"},
		{1_000_000, "Godlike"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score=%d", tt.score)
	}
}

func TestUser_ApplyResult(t *testing.T) {
	// Arrange
	user := &User{ID: 1, CumulativeScore: 450, Level: "Beginner", HighestScore: 40}

	// Act
	user.ApplyResult(&Result{FinalScore: 110, IsWinner: true, PrizeAmount: decimal.NewFromInt(450)})

	// Assert
	assert.Equal(t, int64(560), user.CumulativeScore)
	assert.Equal(t, "Novice", user.Level)
	assert.Equal(t, int64(1), user.GamesPlayed)
	assert.Equal(t, int64(110), user.HighestScore)
	assert.Equal(t, int64(1), user.WinsCount)
	assert.True(t, decimal.NewFromInt(450).Equal(user.TotalPrizeWon))
}

func TestUser_ApplyResult_NonWinner(t *testing.T) {
	user := &User{ID: 2, HighestScore: 200}

	user.ApplyResult(&Result{FinalScore: 7})

	assert.Equal(t, int64(7), user.CumulativeScore)
	assert.Equal(t, int64(200), user.HighestScore)
	assert.Zero(t, user.WinsCount)
	assert.True(t, user.TotalPrizeWon.IsZero())
}
