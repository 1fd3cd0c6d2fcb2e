package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/quiz-engine/internal/config"
	"github.com/yourusername/quiz-engine/internal/domain/repository"
	"github.com/yourusername/quiz-engine/internal/handler"
	"github.com/yourusername/quiz-engine/internal/middleware"
	"github.com/yourusername/quiz-engine/internal/pkg/clock"
	"github.com/yourusername/quiz-engine/internal/repository/memory"
	pgRepo "github.com/yourusername/quiz-engine/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiz-engine/internal/repository/redis"
	"github.com/yourusername/quiz-engine/internal/service"
	"github.com/yourusername/quiz-engine/internal/service/quizmanager"
	ws "github.com/yourusername/quiz-engine/internal/websocket"
	"github.com/yourusername/quiz-engine/pkg/auth"
	"github.com/yourusername/quiz-engine/pkg/database"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

// repositories - набор хранилищ для выбранного драйвера
type repositories struct {
	quizzes       repository.QuizRepository
	participants  repository.ParticipantRepository
	results       repository.ResultRepository
	users         repository.UserRepository
	transactions  repository.TransactionRepository
	notifications repository.NotificationRepository
	cache         repository.CacheRepository

	db          *gorm.DB
	redisClient redis.UniversalClient // nil для memory
}

func (r *repositories) close() {
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			log.Printf("[Server] Ошибка закрытия Redis: %v", err)
		}
	}
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Println("[Server] Хранилище в памяти: данные не переживут перезапуск")
		store := memory.NewStore()
		return &repositories{
			quizzes:       store.Quizzes(),
			participants:  store.Participants(),
			results:       store.Results(),
			users:         store.Users(),
			transactions:  store.Transactions(),
			notifications: store.Notifications(),
			cache:         store.Cache(),
		}, nil
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), logger.Warn)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, database.MigrateUp); err != nil {
		return nil, err
	}

	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	return &repositories{
		quizzes:       pgRepo.NewQuizRepo(db),
		participants:  pgRepo.NewParticipantRepo(db),
		results:       pgRepo.NewResultRepo(db),
		users:         pgRepo.NewUserRepo(db),
		transactions:  pgRepo.NewTransactionRepo(db),
		notifications: pgRepo.NewNotificationRepo(db),
		cache:         cacheRepo,
		db:            db,
		redisClient:   redisClient,
	}, nil
}

func quizManagerConfig(cfg config.QuizConfig) *quizmanager.Config {
	qc := quizmanager.DefaultConfig()
	qc.RegistrationCutoff = cfg.RegistrationCutoff
	qc.CountdownDelay = cfg.CountdownDelay
	qc.SessionDuration = cfg.SessionDuration
	qc.QuestionInterval = cfg.QuestionInterval
	if cfg.BasePoints > 0 {
		qc.BasePoints = cfg.BasePoints
	}
	if len(cfg.RankBonuses) > 0 {
		qc.RankBonuses = cfg.RankBonuses
	}
	qc.FinalizeRetries = cfg.FinalizeRetries
	if cfg.FinalizeRetryInterval > 0 {
		qc.FinalizeRetryInterval = cfg.FinalizeRetryInterval
	}
	return qc
}

func runServer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return err
	}

	// WebSocket: локальный хаб и, в кластере, рассылка через Redis Pub/Sub
	hub := ws.NewShardedHub(0)
	defer hub.Close()

	var clusterHub *ws.ClusterHub
	if cfg.WebSocket.Cluster.Enabled {
		pubSub, err := ws.NewRedisPubSub(repos.redisClient)
		if err != nil {
			return fmt.Errorf("failed to create pubsub provider: %w", err)
		}

		clusterHub = ws.NewClusterHub(hub, pubSub, cfg.WebSocket.Cluster)
		if err := clusterHub.Start(ctx); err != nil {
			_ = pubSub.Close()
			return fmt.Errorf("failed to start cluster hub: %w", err)
		}
		// Stop закрывает и провайдер
		defer clusterHub.Stop()
	}
	wsManager := ws.NewManager(hub, clusterHub)

	var emailSender service.EmailSender
	if cfg.Notification.EmailEnabled {
		resendService, err := service.NewResendEmailService(cfg.Notification.ResendAPIKey,
			cfg.Notification.FromEmail, cfg.Notification.FromName)
		if err != nil {
			return err
		}
		emailSender = resendService
	}

	clk := clock.New()
	notificationService := service.NewNotificationService(service.NotificationOptions{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		BaseURL:   cfg.Notification.BaseURL,
	}, repos.notifications, repos.users, wsManager, emailSender, clk)
	notificationService.Start(context.Background())
	defer notificationService.Stop()

	qmConfig := quizManagerConfig(cfg.Quiz)
	quizManager := service.NewQuizManager(qmConfig, &quizmanager.Dependencies{
		QuizRepo:        repos.quizzes,
		ParticipantRepo: repos.participants,
		ResultRepo:      repos.results,
		UserRepo:        repos.users,
		TransactionRepo: repos.transactions,
		CacheRepo:       repos.cache,
		Broadcaster:     wsManager,
		Notifier:        notificationService,
		Clock:           clk,
	})
	// Восстанавливаем викторины, прерванные перезапуском
	if err := quizManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to resume sessions: %w", err)
	}
	defer quizManager.Shutdown()

	quizService := service.NewQuizService(repos.quizzes, qmConfig, clk)
	resultService := service.NewResultService(repos.quizzes, repos.results, repos.users, repos.cache, cfg.Quiz.ResultsCacheTTL)
	paymentService := service.NewPaymentService(repos.transactions, repos.quizzes, quizManager)
	userService := service.NewUserService(repos.users)

	clientConfig := ws.ClientConfig{
		BufferSize:     cfg.WebSocket.ClientSendBuffer,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}

	// Для memory клиент nil - ограничение частоты отключено
	rateLimiter := middleware.NewRateLimiter(repos.redisClient)

	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		AnswerLimit:    middleware.AnswerRateLimitConfig(cfg.RateLimit.AnswerMaxRequests, cfg.RateLimit.AnswerWindow),
		WebhookSecret:  cfg.Payment.WebhookSecret,
	}, handler.Handlers{
		Quiz:    handler.NewQuizHandler(quizService, resultService, quizManager),
		User:    handler.NewUserHandler(userService, notificationService),
		Payment: handler.NewPaymentHandler(paymentService),
		WS:      handler.NewWSHandler(wsManager, quizManager, jwtService, clientConfig, cfg.Server.AllowedOrigins),
	}, middleware.NewAuthMiddleware(jwtService), rateLimiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[Server] Запуск на порту %s (storage=%s)", cfg.Server.Port, cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[Server] Остановка сервера...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("[Server] Сервер корректно остановлен")
	return nil
}
