package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config структура конфигурации
type Config struct {
	TelegramBotToken string
	JWTSecret        string
	Port             string
	WSAddr           string // адрес отдельного HTTP-сервера для WebSocket
	LogLevel         string
	OTLPEndpoint     string
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	RedisConfig      RedisConfig
	CloudinaryConfig CloudinaryConfig
	Limits           LimitsConfig
	AppEnv           string
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig содержит конфигурацию Redis
type RedisConfig struct {
	Addr     string // host[:port]
	User     string
	Password string
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	UploadFolder string
}

// LimitsConfig содержит ограничения на предложения обмена
type LimitsConfig struct {
	ProposalsPerHour   int
	LimiterFailOpen    bool
	CachePendingCounts bool
	PendingCountTTL    time.Duration
}

// LoadConfig загружает переменные из .env
func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	cfg := &Config{
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		Port:             getEnv("PORT", "8080"),
		WSAddr:           getEnv("WS_ADDR", ":8081"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AppEnv:           getEnv("APP_ENV", "production"), // По умолчанию production
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Ошибка: %v", err)
	}

	cfg.applyEnv()
	return cfg
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" || c.JWTSecret == "" {
		return fmt.Errorf("не заданы обязательные переменные окружения TELEGRAM_BOT_TOKEN и JWT_SECRET")
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DatabaseConfig = DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "swapeco_user"),
		Password: getEnv("PGPASSWORD", "swapeco_pass"),
		Name:     getEnv("PGDATABASE", "swapeco"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
	}
	c.DatabaseURL = c.DatabaseConfig.URL()

	c.RedisConfig = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		User:     getEnv("REDIS_USER", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
	}

	c.CloudinaryConfig = CloudinaryConfig{
		CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
		APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
		UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "swapeco_items"),
		UploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "items"),
	}

	c.Limits = LimitsConfig{
		ProposalsPerHour:   getEnvInt("PROPOSALS_PER_HOUR", 20),
		LimiterFailOpen:    getEnvBool("LIMITER_FAIL_OPEN", true),
		CachePendingCounts: getEnvBool("CACHE_PENDING_COUNTS", true),
		PendingCountTTL:    getEnvDuration("PENDING_COUNT_TTL", time.Minute),
	}
}

// URL формирует строку подключения к базе данных
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
