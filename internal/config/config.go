package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Kafka      KafkaConfig      `toml:"kafka"`
	MarketData MarketDataConfig `toml:"market_data"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
}

// Addr returns host:port for the HTTP listener
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

// RedisConfig holds the market data cache configuration.
// An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTL      string `toml:"ttl"`
}

// GetTTL parses and returns the cache TTL
func (c *RedisConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// KafkaConfig holds Kafka configuration.
// Empty Brokers disables both the producer and the trade consumer.
type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	Topic           string   `toml:"topic"`
	TradesTopic     string   `toml:"trades_topic"`
	GroupID         string   `toml:"group_id"`
	ConsumerEnabled bool     `toml:"consumer_enabled"`

	// DefaultPortfolioID receives trades that carry no portfolio_id
	DefaultPortfolioID int `toml:"default_portfolio_id"`
}

// MarketDataConfig holds the EODHD client configuration
type MarketDataConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RateLimit       int    `toml:"rate_limit"`
	Timeout         string `toml:"timeout"`
	MaxConcurrency  int    `toml:"max_concurrency"`
	BenchmarkTicker string `toml:"benchmark_ticker"`
}

// GetTimeout parses and returns the HTTP timeout
func (c *MarketDataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when neither a file nor the
// environment override a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "portfolio",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			TTL: "15m",
		},
		Kafka: KafkaConfig{
			Topic:       "portfolio-events",
			TradesTopic: "trading.orders",
			GroupID:     "portfolio-service",
		},
		MarketData: MarketDataConfig{
			BaseURL:         "https://eodhd.com/api",
			RateLimit:       10,
			Timeout:         "30s",
			MaxConcurrency:  5,
			BenchmarkTicker: "GSPC.INDX",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the TOML file named by CONFIG_FILE (if set)
// and then applies environment variable overrides
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.TTL = getEnv("REDIS_TTL", c.Redis.TTL)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.TradesTopic = getEnv("KAFKA_TRADES_TOPIC", c.Kafka.TradesTopic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)
	c.Kafka.ConsumerEnabled = getEnvBool("KAFKA_CONSUMER_ENABLED", c.Kafka.ConsumerEnabled)
	c.Kafka.DefaultPortfolioID = getEnvInt("KAFKA_DEFAULT_PORTFOLIO_ID", c.Kafka.DefaultPortfolioID)

	c.MarketData.BaseURL = getEnv("EODHD_BASE_URL", c.MarketData.BaseURL)
	c.MarketData.APIKey = getEnv("EODHD_API_KEY", c.MarketData.APIKey)
	c.MarketData.RateLimit = getEnvInt("EODHD_RATE_LIMIT", c.MarketData.RateLimit)
	c.MarketData.Timeout = getEnv("EODHD_TIMEOUT", c.MarketData.Timeout)
	c.MarketData.MaxConcurrency = getEnvInt("MARKET_DATA_MAX_CONCURRENCY", c.MarketData.MaxConcurrency)
	c.MarketData.BenchmarkTicker = getEnv("BENCHMARK_TICKER", c.MarketData.BenchmarkTicker)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
