package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-engine/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService("test-secret", "")
	require.NoError(t, err)
	return svc
}

func perform(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	// Arrange
	jwtService := newJWT(t)
	m := NewAuthMiddleware(jwtService)
	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(ContextUserID)})
	})
	r.GET("/admin", m.RequireAuth(), m.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	player, err := jwtService.GenerateToken(5, "", time.Hour)
	require.NoError(t, err)
	admin, err := jwtService.GenerateToken(1, auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	// Act & Assert
	w := perform(r, http.MethodGet, "/me", player)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "garbage").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin", player).Code)
	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodGet, "/admin", admin).Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+player)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "неверный формат заголовка")
}

func TestExtractUintParam(t *testing.T) {
	r := gin.New()
	r.GET("/quizzes/:id", ExtractUintParam("id", "quizID"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetUint("quizID")})
	})

	w := perform(r, http.MethodGet, "/quizzes/12", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":12}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/quizzes/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/quizzes/-1", "").Code)
}

func TestRequireSharedSecret(t *testing.T) {
	newRouter := func(secret string) *gin.Engine {
		r := gin.New()
		r.POST("/webhook", RequireSharedSecret(WebhookSecretHeader, secret), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		return r
	}
	send := func(r http.Handler, value string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		if value != "" {
			req.Header.Set(WebhookSecretHeader, value)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	r := newRouter("gateway-secret")
	assert.Equal(t, http.StatusNoContent, send(r, "gateway-secret"))
	assert.Equal(t, http.StatusUnauthorized, send(r, ""), "без заголовка")
	assert.Equal(t, http.StatusUnauthorized, send(r, "gateway-secreT"), "неверный секрет")
	assert.Equal(t, http.StatusUnauthorized, send(r, "gateway-secret-long"), "секрет другой длины")

	closed := newRouter("")
	assert.Equal(t, http.StatusUnauthorized, send(closed, ""), "пустой секрет закрывает маршрут")
	assert.Equal(t, http.StatusUnauthorized, send(closed, "anything"))
}

func TestRateLimiter_LimitsPerUser(t *testing.T) {
	// Arrange
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client)
	r := gin.New()
	r.POST("/answers/:user", func(c *gin.Context) {
		c.Set(ContextUserID, c.Param("user"))
	}, limiter.Limit(AnswerRateLimitConfig(2, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	// Act & Assert
	assert.Equal(t, http.StatusAccepted, perform(r, http.MethodPost, "/answers/1", "").Code)
	assert.Equal(t, http.StatusAccepted, perform(r, http.MethodPost, "/answers/1", "").Code)
	w := perform(r, http.MethodPost, "/answers/1", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusAccepted, perform(r, http.MethodPost, "/answers/2", "").Code, "лимит считается на пользователя")

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusAccepted, perform(r, http.MethodPost, "/answers/1", "").Code, "окно истекло")
}

func TestRateLimiter_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := gin.New()
	r.POST("/answers", NewRateLimiter(client).Limit(AnswerRateLimitConfig(1, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	assert.Equal(t, http.StatusAccepted, perform(r, http.MethodPost, "/answers", "").Code)
	assert.Equal(t, http.StatusAccepted, perform(r, http.MethodPost, "/answers", "").Code)

	noRedis := gin.New()
	noRedis.POST("/answers", NewRateLimiter(nil).Limit(AnswerRateLimitConfig(1, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	assert.Equal(t, http.StatusAccepted, perform(noRedis, http.MethodPost, "/answers", "").Code)
	assert.Equal(t, http.StatusAccepted, perform(noRedis, http.MethodPost, "/answers", "").Code)
}
