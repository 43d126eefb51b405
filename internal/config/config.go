package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Debug                     bool
	Database                  DatabaseConfig
	LLM                       LLMConfig
	Log                       LogConfig
	Storage                   StorageConfig
	Events                    EventsConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// LLMConfig holds the model and safety evaluator settings.
type LLMConfig struct {
	DefaultProvider string
	DefaultModel    string
	GroqAPIKey      string
	GroqBaseURL     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	LocalBaseURL    string
	SafetyProvider  string
	SafetyModel     string
	Timeout         time.Duration
	MemoryMaxTurns  int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string
	Dir     string
	Console bool
}

// StorageConfig holds the MinIO settings for attachment archiving.
// An empty Endpoint disables archiving.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// EventsConfig holds the Kafka settings for turn events.
// No brokers disables publishing.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "medichat"),
		DSN:      getEnv("DATABASE_URL", ""),
	}
	if dbConfig.DSN == "" {
		dsn, err := buildDSN(dbConfig)
		if err != nil {
			return nil, err
		}
		dbConfig.DSN = dsn
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	timeoutSeconds, err := strconv.Atoi(getEnv("MODEL_TIMEOUT_SECONDS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid MODEL_TIMEOUT_SECONDS: %w", err)
	}

	memoryMaxTurns, err := strconv.Atoi(getEnv("CHAT_MEMORY_MAX_TURNS", "40"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_MEMORY_MAX_TURNS: %w", err)
	}
	if memoryMaxTurns < 0 {
		return nil, fmt.Errorf("invalid CHAT_MEMORY_MAX_TURNS: must not be negative")
	}

	llmConfig := LLMConfig{
		DefaultProvider: getEnv("MODEL_PROVIDER", "groq"),
		DefaultModel:    getEnv("MODEL_NAME", "qwen/qwen3-32b"),
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LocalBaseURL:    getEnv("LOCAL_MODEL_URL", "http://localhost:11434/v1"),
		SafetyProvider:  getEnv("SAFETY_PROVIDER", "groq"),
		SafetyModel:     getEnv("SAFETY_MODEL", "groq/compound-mini"),
		Timeout:         time.Duration(timeoutSeconds) * time.Second,
		MemoryMaxTurns:  memoryMaxTurns,
	}

	logConfig := LogConfig{
		Level:   getEnv("LOG_LEVEL", "info"),
		Dir:     getEnv("LOG_DIR", "./logs"),
		Console: getEnvBool("LOG_CONSOLE", true),
	}

	storageConfig := StorageConfig{
		Endpoint:  getEnv("MINIO_ENDPOINT", ""),
		AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: getEnv("MINIO_SECRET_KEY", ""),
		Bucket:    getEnv("MINIO_BUCKET", "chat-attachments"),
		UseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	eventsConfig := EventsConfig{
		Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
		Topic:   getEnv("KAFKA_TOPIC", "chat-turns"),
	}

	return &Config{
		Port:                      getEnv("PORT", "8000"),
		Origin:                    getEnv("ORIGIN", "*"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET_KEY", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET_KEY", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Debug:                     getEnv("DEBUG", "0") == "1",
		Database:                  dbConfig,
		LLM:                       llmConfig,
		Log:                       logConfig,
		Storage:                   storageConfig,
		Events:                    eventsConfig,
	}, nil
}

// buildDSN builds the Data Source Name for the selected driver.
func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.Username, db.Password, db.Host, db.Port, db.Name), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			db.Host, db.Port, db.Username, db.Password, db.Name), nil
	case "sqlite":
		return db.Name + ".db?_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
