package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService("secret", "auth-service")
	require.NoError(t, err)

	token, err := svc.GenerateToken(42, RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService("secret", "auth-service")
	require.NoError(t, err)

	expired, err := svc.GenerateToken(1, "", -time.Minute)
	require.NoError(t, err)

	other, err := NewJWTService("other-secret", "auth-service")
	require.NoError(t, err)
	foreign, err := other.GenerateToken(1, "", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewJWTService("secret", "someone-else")
	require.NoError(t, err)
	misissued, err := wrongIssuer.GenerateToken(1, "", time.Hour)
	require.NoError(t, err)

	anonymous, err := svc.GenerateToken(0, "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"мусор", "not-a-token", ErrTokenMalformed},
		{"истекший", expired, ErrTokenExpired},
		{"чужая подпись", foreign, ErrTokenInvalid},
		{"чужой издатель", misissued, ErrTokenInvalid},
		{"без пользователя", anonymous, ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ParseToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", "")
	assert.Error(t, err)
}
