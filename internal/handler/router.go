package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/quiz-engine/internal/middleware"
)

// RouterConfig - параметры маршрутизации
type RouterConfig struct {
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
	AnswerLimit    middleware.RateLimitConfig
	WebhookSecret  string
}

// Handlers - набор обработчиков API
type Handlers struct {
	Quiz    *QuizHandler
	User    *UserHandler
	Payment *PaymentHandler
	WS      *WSHandler // nil - WebSocket не подключается
}

// NewRouter настраивает маршруты API
func NewRouter(cfg RouterConfig, h Handlers, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// Доверяем прокси только с localhost
	_ = router.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	allowAll := len(cfg.AllowedOrigins) == 0
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if allowAll {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	{
		// Пользователи
		users := api.Group("/users")
		users.Use(authMiddleware.RequireAuth())
		{
			users.GET("/me", h.User.GetMe)
			users.GET("/me/improvement-areas", h.User.GetImprovementAreas)
			users.GET("/me/notifications", h.User.GetNotifications)
		}

		// Уведомления платежного шлюза
		api.POST("/payments/webhook",
			middleware.RequireSharedSecret(middleware.WebhookSecretHeader, cfg.WebhookSecret),
			h.Payment.HandleWebhook)

		// Викторины
		quizzes := api.Group("/quizzes")
		{
			quizzes.GET("", h.Quiz.ListQuizzes)
			quizzes.POST("", authMiddleware.RequireAuth(), authMiddleware.AdminOnly(), h.Quiz.CreateQuiz)

			quizWithID := quizzes.Group("/:id")
			quizWithID.Use(middleware.ExtractUintParam("id", "quizID"))
			{
				quizWithID.GET("", h.Quiz.GetQuiz)
				quizWithID.GET("/results", h.Quiz.GetQuizResults)

				// Маршруты для аутентифицированных пользователей
				authedQuizzes := quizWithID.Group("")
				authedQuizzes.Use(authMiddleware.RequireAuth())
				{
					authedQuizzes.POST("/register", h.Quiz.RegisterForQuiz)
					authedQuizzes.DELETE("/register", h.Quiz.UnregisterFromQuiz)
					authedQuizzes.POST("/waiting-room", h.Quiz.JoinWaitingRoom)
					authedQuizzes.POST("/answers", rateLimiter.Limit(cfg.AnswerLimit), h.Quiz.SubmitAnswer)
					authedQuizzes.GET("/results/me", h.Quiz.GetUserQuizResult)
				}

				// Маршруты для администраторов
				adminQuizzes := quizWithID.Group("")
				adminQuizzes.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
				{
					adminQuizzes.POST("/start", h.Quiz.StartQuiz)
					adminQuizzes.POST("/end", h.Quiz.EndQuiz)
					adminQuizzes.GET("/results/export", h.Quiz.ExportQuizResults)
				}
			}
		}
	}

	if h.WS != nil {
		router.GET("/ws", h.WS.HandleConnection)
	}
	return router
}
