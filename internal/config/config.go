package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	API struct {
		Port     string
		BasePath string
	}
	Ingest struct {
		QueueSize  int
		MaxWorkers int
	}
	Popup struct {
		Duration       time.Duration
		UrgentDuration time.Duration
		CloseDelay     time.Duration
	}
	Email struct {
		ProviderURL string
		ServiceID   string
		TemplateID  string
		PublicKey   string
		Timeout     time.Duration
	}
	Telegram struct {
		BotToken      string
		ChatID        int64
		RatePerSecond int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Ingest worker settings
	if qs, err := strconv.Atoi(os.Getenv("INGEST_QUEUE_SIZE")); err == nil {
		cfg.Ingest.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("INGEST_MAX_WORKERS")); err == nil {
		cfg.Ingest.MaxWorkers = mw
	}

	// Email relay settings
	cfg.Email.ProviderURL = os.Getenv("EMAIL_PROVIDER_URL")
	cfg.Email.ServiceID = os.Getenv("EMAIL_SERVICE_ID")
	cfg.Email.TemplateID = os.Getenv("EMAIL_TEMPLATE_ID")
	cfg.Email.PublicKey = os.Getenv("EMAIL_PUBLIC_KEY")

	// Telegram settings (optional alert sink)
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = chatID
	}
	if rps, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_PER_SECOND")); err == nil {
		cfg.Telegram.RatePerSecond = rps
	}

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "task_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "facility-notify"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = 500
	}
	if cfg.Ingest.MaxWorkers == 0 {
		cfg.Ingest.MaxWorkers = 10
	}
	cfg.Popup.Duration = 5 * time.Second
	cfg.Popup.UrgentDuration = 10 * time.Second
	cfg.Popup.CloseDelay = 300 * time.Millisecond
	cfg.Email.Timeout = 30 * time.Second
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 1
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
