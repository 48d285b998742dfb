// /internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ============================================
// КОНФИГУРАЦИЯ БАЗЫ ДАННЫХ
// ============================================

// DatabaseConfig - конфигурация базы данных
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// Настройки пула соединений
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	EnableAutoMigrate bool
}

// RedisConfig - конфигурация Redis
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool

	// TTL кэша списка символов
	SymbolsTTL time.Duration
}

// BinanceConfig - конфигурация клиента Binance Futures
type BinanceConfig struct {
	FuturesURL     string
	RequestTimeout time.Duration
}

// KeeperConfig - настройки поддержания свечных данных
type KeeperConfig struct {
	// Скользящее окно инжеста 1-минутных свечей
	IngestWindow time.Duration

	// Исключение свежих данных при проверке целостности
	CheckExclusion time.Duration

	// Глубина архивной сетки в днях (не считая текущего дня)
	AnalysisDays int

	// Порог полноты в процентах для сводного отчета
	IntegrityThreshold float64

	// Пауза между внешними запросами свечей
	FetchDelay time.Duration

	// Максимум строк на один запрос к источнику
	FetchLimit int

	// Период цикла сканирования (инжест + роловер)
	ScanInterval time.Duration

	// Фильтр символов: пустой - все USDT perpetual
	SymbolFilter string

	// Лимит выводимых примеров пропущенных меток времени
	MissingSampleLimit int
}

// Config - основная структура конфигурации
type Config struct {
	Environment string
	LogPath     string
	LogLevel    string
	Debug       bool

	Database DatabaseConfig
	Redis    RedisConfig
	Binance  BinanceConfig
	Keeper   KeeperConfig
}

// LoadConfig загружает конфигурацию из .env и переменных окружения
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		fmt.Printf("⚠️  Config file not found, using environment variables\n")
	}

	cfg := &Config{}

	// ======================
	// ОСНОВНЫЕ НАСТРОЙКИ
	// ======================
	cfg.Environment = getEnv("ENVIRONMENT", "production")
	cfg.LogPath = getEnv("LOG_PATH", "logs/keeper.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	cfg.Debug = getEnvBool("DEBUG", false)

	// ======================
	// БАЗА ДАННЫХ
	// ======================
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "klines")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 10)
	cfg.Database.MaxConnLifetime = getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	cfg.Database.MaxConnIdleTime = getEnvDuration("DB_MAX_CONN_IDLE_TIME", 10*time.Minute)
	cfg.Database.EnableAutoMigrate = getEnvBool("DB_ENABLE_AUTO_MIGRATE", true)

	// ======================
	// REDIS
	// ======================
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnvInt("REDIS_PORT", 6379)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", true)
	cfg.Redis.SymbolsTTL = getEnvDuration("REDIS_SYMBOLS_TTL", time.Hour)

	// ======================
	// BINANCE
	// ======================
	cfg.Binance.FuturesURL = getEnv("BINANCE_FUTURES_URL", "https://fapi.binance.com")
	cfg.Binance.RequestTimeout = getEnvDuration("BINANCE_REQUEST_TIMEOUT", 30*time.Second)

	// ======================
	// ПОДДЕРЖАНИЕ ДАННЫХ
	// ======================
	cfg.Keeper.IngestWindow = getEnvDuration("KEEPER_INGEST_WINDOW", 30*time.Minute)
	cfg.Keeper.CheckExclusion = getEnvDuration("KEEPER_CHECK_EXCLUSION", 15*time.Minute)
	cfg.Keeper.AnalysisDays = getEnvInt("KEEPER_ANALYSIS_DAYS", 29)
	cfg.Keeper.IntegrityThreshold = getEnvFloat("KEEPER_INTEGRITY_THRESHOLD", 95.0)
	cfg.Keeper.FetchDelay = getEnvDuration("KEEPER_FETCH_DELAY", 200*time.Millisecond)
	cfg.Keeper.FetchLimit = getEnvInt("KEEPER_FETCH_LIMIT", 1500)
	cfg.Keeper.ScanInterval = getEnvDuration("KEEPER_SCAN_INTERVAL", 5*time.Minute)
	cfg.Keeper.SymbolFilter = getEnv("KEEPER_SYMBOL_FILTER", "")
	cfg.Keeper.MissingSampleLimit = getEnvInt("KEEPER_MISSING_SAMPLE_LIMIT", 10)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Keeper.FetchLimit <= 0 {
		return fmt.Errorf("KEEPER_FETCH_LIMIT must be positive")
	}
	if c.Keeper.AnalysisDays <= 0 {
		return fmt.Errorf("KEEPER_ANALYSIS_DAYS must be positive")
	}
	return nil
}

// DSN возвращает строку подключения к PostgreSQL
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr возвращает адрес Redis
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Вспомогательные функции чтения окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
