package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config хранит все настройки приложения
type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Quiz         QuizConfig
	Notification NotificationConfig
	WebSocket    WebSocketConfig
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	Metrics      MetricsConfig
	Payment      PaymentConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// StorageConfig выбирает реализацию репозиториев
type StorageConfig struct {
	// Driver: "postgres" (по умолчанию) или "memory" (один инстанс, без БД и Redis)
	Driver string
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт).
	Addrs []string `mapstructure:"addrs"`

	// Addr: адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
}

// JWTConfig - проверка токенов, выпущенных внешним сервисом аутентификации
type JWTConfig struct {
	Secret string
	Issuer string
}

// QuizConfig - тайминги и очки викторины
type QuizConfig struct {
	RegistrationCutoff    time.Duration `mapstructure:"registration_cutoff"`
	CountdownDelay        time.Duration `mapstructure:"countdown_delay"`
	SessionDuration       time.Duration `mapstructure:"session_duration"`
	QuestionInterval      time.Duration `mapstructure:"question_interval"`
	BasePoints            int           `mapstructure:"base_points"`
	RankBonuses           []int         `mapstructure:"rank_bonuses"`
	FinalizeRetries       int           `mapstructure:"finalize_retries"`
	FinalizeRetryInterval time.Duration `mapstructure:"finalize_retry_interval"`
	ResultsCacheTTL       time.Duration `mapstructure:"results_cache_ttl"`
}

// NotificationConfig - очередь уведомлений и e-mail канал
type NotificationConfig struct {
	Workers      int
	QueueSize    int    `mapstructure:"queue_size"`
	EmailEnabled bool   `mapstructure:"email_enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	FromEmail    string `mapstructure:"from_email"`
	FromName     string `mapstructure:"from_name"`
	BaseURL      string `mapstructure:"base_url"`
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	ClientSendBuffer int           `mapstructure:"client_send_buffer"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	Cluster          ClusterConfig
}

// ClusterConfig содержит настройки межинстансной рассылки через Redis Pub/Sub
type ClusterConfig struct {
	Enabled    bool
	InstanceID string `mapstructure:"instance_id"`
	Channel    string
}

// RateLimitConfig - ограничение частоты отправки ответов
type RateLimitConfig struct {
	AnswerMaxRequests int           `mapstructure:"answer_max_requests"`
	AnswerWindow      time.Duration `mapstructure:"answer_window"`
}

// MetricsConfig - экспорт метрик Prometheus
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// PaymentConfig - прием уведомлений платежного шлюза
type PaymentConfig struct {
	// WebhookSecret сверяется с заголовком X-Webhook-Secret каждого уведомления
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15*time.Second)
	vip.SetDefault("server.write_timeout", 15*time.Second)
	vip.SetDefault("server.allowed_origins", []string{"*"})

	vip.SetDefault("storage.driver", StorageDriverPostgres)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")
	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("jwt.issuer", "")

	vip.SetDefault("quiz.registration_cutoff", 60*time.Second)
	vip.SetDefault("quiz.countdown_delay", 2*time.Minute)
	vip.SetDefault("quiz.session_duration", 30*time.Minute)
	vip.SetDefault("quiz.question_interval", 10*time.Second)
	vip.SetDefault("quiz.base_points", 10)
	vip.SetDefault("quiz.rank_bonuses", []int{100, 75, 50})
	vip.SetDefault("quiz.finalize_retries", 3)
	vip.SetDefault("quiz.finalize_retry_interval", 2*time.Second)
	vip.SetDefault("quiz.results_cache_ttl", 24*time.Hour)

	vip.SetDefault("notification.workers", 4)
	vip.SetDefault("notification.queue_size", 1024)
	vip.SetDefault("notification.from_name", "Quiz")

	vip.SetDefault("websocket.client_send_buffer", 64)
	vip.SetDefault("websocket.max_message_size", 4096)
	vip.SetDefault("websocket.write_wait", 10*time.Second)
	vip.SetDefault("websocket.pong_wait", 60*time.Second)
	vip.SetDefault("websocket.cluster.channel", "quiz:events")

	vip.SetDefault("rate_limit.answer_max_requests", 30)
	vip.SetDefault("rate_limit.answer_window", time.Minute)

	vip.SetDefault("metrics.enabled", true)
	vip.SetDefault("metrics.path", "/metrics")
}

func bindEnv(vip *viper.Viper) {
	_ = vip.BindEnv("server.port", "SERVER_PORT")
	_ = vip.BindEnv("storage.driver", "STORAGE_DRIVER")

	_ = vip.BindEnv("database.host", "DATABASE_HOST")
	_ = vip.BindEnv("database.port", "DATABASE_PORT")
	_ = vip.BindEnv("database.user", "DATABASE_USER")
	_ = vip.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	_ = vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	_ = vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	_ = vip.BindEnv("redis.mode", "REDIS_MODE")
	_ = vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	_ = vip.BindEnv("redis.addr", "REDIS_ADDR")
	_ = vip.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = vip.BindEnv("redis.db", "REDIS_DB")
	_ = vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	_ = vip.BindEnv("jwt.secret", "JWT_SECRET")
	_ = vip.BindEnv("jwt.issuer", "JWT_ISSUER")

	_ = vip.BindEnv("notification.email_enabled", "NOTIFICATION_EMAIL_ENABLED")
	_ = vip.BindEnv("notification.resend_api_key", "RESEND_API_KEY")
	_ = vip.BindEnv("notification.from_email", "NOTIFICATION_FROM_EMAIL")

	_ = vip.BindEnv("payment.webhook_secret", "PAYMENT_WEBHOOK_SECRET")

	_ = vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	_ = vip.BindEnv("websocket.cluster.instance_id", "WEBSOCKET_CLUSTER_INSTANCE_ID")
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // новый экземпляр, чтобы избежать глобального состояния

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл необязателен: переменные окружения и умолчания покрывают все параметры
		if err := vip.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				log.Printf("[Config] Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("[Config] storage=%s db=%s@%s/%s redis=%s cluster=%t",
			cfg.Storage.Driver, cfg.Database.User, cfg.Database.Host, cfg.Database.DBName,
			cfg.Redis.Addr, cfg.WebSocket.Cluster.Enabled)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
			return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
		}
		if len(c.Redis.Addrs) == 0 && c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for postgres storage (check REDIS_ADDR env var)")
		}
		if c.Payment.WebhookSecret == "" {
			return fmt.Errorf("payment webhook secret is required for postgres storage (check PAYMENT_WEBHOOK_SECRET env var)")
		}
	case StorageDriverMemory:
		if c.WebSocket.Cluster.Enabled {
			return fmt.Errorf("websocket cluster mode requires postgres storage")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required (check JWT_SECRET env var)")
	}
	if c.Quiz.QuestionInterval <= 0 || c.Quiz.SessionDuration <= 0 {
		return fmt.Errorf("quiz question_interval and session_duration must be positive")
	}
	if c.Notification.EmailEnabled && c.Notification.ResendAPIKey == "" {
		return fmt.Errorf("resend api key is required when email notifications are enabled")
	}
	return nil
}
