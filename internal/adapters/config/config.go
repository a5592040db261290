package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"agentsplatform/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	OpenAI        OpenAIConfig
	Telegram      TelegramConfig
	WhatsApp      WhatsAppConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
	Knowledge     KnowledgeConfig
}

type AppConfig struct {
	Name         string `envconfig:"PROJECT_NAME" default:"AI Agents Platform"`
	Env          string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	Debug        bool   `envconfig:"DEBUG" default:"false"`
	Version      string `envconfig:"APP_VERSION" default:"1.0.0"`
	DefaultAgent string `envconfig:"DEFAULT_AGENT_ID" default:"shimon"`
	// MetricsExportPath is where debug builds write metrics snapshots
	MetricsExportPath string `envconfig:"METRICS_EXPORT_PATH" default:"metrics.json"`
	// AgentsFile seeds agent configs that are missing from storage
	AgentsFile string `envconfig:"AGENTS_FILE" default:"configs/agents.yaml"`
}

type HTTPConfig struct {
	Port         int           `envconfig:"HTTP_PORT" default:"8000"`
	APIPrefix    string        `envconfig:"API_V1_PREFIX" default:"/api/v1"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	// PublicBaseURL is the externally reachable address used for webhook registration
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"agents"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"agents"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
	// EmbeddingDims must match the embedding model output
	EmbeddingDims int `envconfig:"POSTGRES_EMBEDDING_DIMS" default:"1536"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	// URL takes precedence over Host/Port when set, e.g. redis://:pass@host:6379/0
	URL        string        `envconfig:"REDIS_URL"`
	Host       string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port       int           `envconfig:"REDIS_PORT" default:"6379"`
	Password   string        `envconfig:"REDIS_PASSWORD"`
	DB         int           `envconfig:"REDIS_DB" default:"0"`
	DefaultTTL time.Duration `envconfig:"REDIS_DEFAULT_TTL" default:"1h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	// Empty broker list disables the async inbound queue; messages are then handled in-process
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"agents-platform"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type OpenAIConfig struct {
	APIKey         string `envconfig:"OPENAI_API_KEY"`
	Endpoint       string `envconfig:"AZURE_OPENAI_ENDPOINT"`
	APIVersion     string `envconfig:"AZURE_OPENAI_API_VERSION" default:"2024-02-15-preview"`
	Model          string `envconfig:"OPENAI_MODEL" default:"gpt-4"`
	EmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	// RequestsPerMinute bounds completion calls across all agents
	RequestsPerMinute int           `envconfig:"OPENAI_REQUESTS_PER_MINUTE" default:"60"`
	Timeout           time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
}

// Azure reports whether completions go through an Azure OpenAI deployment
func (c OpenAIConfig) Azure() bool {
	return c.Endpoint != ""
}

type TelegramConfig struct {
	BotToken    string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	SecretToken string  `envconfig:"TELEGRAM_SECRET_TOKEN"`
	AdminIDs    []int64 `envconfig:"TELEGRAM_ADMIN_IDS"`
}

type WhatsAppConfig struct {
	AccessToken   string `envconfig:"WHATSAPP_TOKEN"`
	PhoneNumberID string `envconfig:"WHATSAPP_PHONE_NUMBER_ID"`
	VerifyToken   string `envconfig:"WHATSAPP_VERIFY_TOKEN"`
	APIVersion    string `envconfig:"WHATSAPP_API_VERSION" default:"v16.0"`
	BaseURL       string `envconfig:"WHATSAPP_BASE_URL" default:"https://graph.facebook.com"`
}

type ErrorTrackingConfig struct {
	Enabled     bool    `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string  `envconfig:"SENTRY_DSN"`
	Environment string  `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
	SampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
}

// WorkerConfig holds scheduler task intervals
type WorkerConfig struct {
	KnowledgeUpdateInterval  time.Duration `envconfig:"WORKER_KNOWLEDGE_UPDATE_INTERVAL" default:"1h"`
	MetricsCleanupInterval   time.Duration `envconfig:"WORKER_METRICS_CLEANUP_INTERVAL" default:"24h"`
	HealthCheckInterval      time.Duration `envconfig:"WORKER_HEALTH_CHECK_INTERVAL" default:"5m"`
	ErrorNotifyInterval      time.Duration `envconfig:"WORKER_ERROR_NOTIFICATION_INTERVAL" default:"30m"`
	MetricsExportInterval    time.Duration `envconfig:"WORKER_METRICS_EXPORT_INTERVAL" default:"5m"`
	CollectorCleanupInterval time.Duration `envconfig:"WORKER_COLLECTOR_CLEANUP_INTERVAL" default:"1h"`
	DataRetentionDays        int           `envconfig:"DATA_RETENTION_DAYS" default:"30"`
	ErrorRateNotifyThreshold float64       `envconfig:"ERROR_RATE_NOTIFY_THRESHOLD" default:"0.1"`
	SchedulerTick            time.Duration `envconfig:"SCHEDULER_TICK" default:"1s"`
}

// KnowledgeConfig lists the legal sources scraped by the knowledge manager
type KnowledgeConfig struct {
	CourtRulings  []string      `envconfig:"KNOWLEDGE_COURT_RULINGS" default:"https://supreme.court.gov.il/rulings,https://www.nevo.co.il/rulings,https://www.takdin.co.il/rulings,https://www.psakdin.co.il/rulings"`
	LegalUpdates  []string      `envconfig:"KNOWLEDGE_LEGAL_UPDATES" default:"https://www.gov.il/he/departments/execution_office,https://www.justice.gov.il/Units/ExecutionOffice,https://www.judiciary.gov.il/updates"`
	Bankruptcy    []string      `envconfig:"KNOWLEDGE_BANKRUPTCY" default:"https://www.gov.il/he/departments/official-receiver,https://www.justice.gov.il/Units/ApotroposKlali"`
	FetchTimeout  time.Duration `envconfig:"KNOWLEDGE_FETCH_TIMEOUT" default:"30s"`
	UseEmbeddings bool          `envconfig:"KNOWLEDGE_USE_EMBEDDINGS" default:"false"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.HTTP.APIPrefix, "/") {
		return errors.NewValidationError("API_V1_PREFIX", "must start with /", c.HTTP.APIPrefix)
	}
	if c.HTTP.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(c.HTTP.PublicBaseURL); err != nil {
			return errors.NewValidationError("PUBLIC_BASE_URL", "not a valid URL", c.HTTP.PublicBaseURL)
		}
	}
	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.NewValidationError("WHATSAPP_PHONE_NUMBER_ID", "required when WHATSAPP_TOKEN is set", "")
	}
	if c.OpenAI.RequestsPerMinute <= 0 {
		return errors.NewValidationError("OPENAI_REQUESTS_PER_MINUTE", "must be positive", c.OpenAI.RequestsPerMinute)
	}
	return nil
}

// IsProduction reports whether the platform runs in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
