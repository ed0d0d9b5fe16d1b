package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	LogLevel  string                    `mapstructure:"log_level"`
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	Ingest    IngestConfig              `mapstructure:"ingest"`
	Arbitrage ArbitrageConfig           `mapstructure:"arbitrage"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// CacheConfig represents Redis configuration
type CacheConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// ExchangeConfig represents the configuration of a single exchange connector
type ExchangeConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	APISecret      string   `mapstructure:"api_secret"`
	UseTestnet     bool     `mapstructure:"use_testnet"`
	RESTURL        string   `mapstructure:"rest_url"`
	WSURL          string   `mapstructure:"ws_url"`
	TestnetRESTURL string   `mapstructure:"testnet_rest_url"`
	TestnetWSURL   string   `mapstructure:"testnet_ws_url"`
	Symbols        []string `mapstructure:"symbols"`

	// Advisory request budget per rolling window.
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// IngestConfig represents ingestion loop configuration
type IngestConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	StreamBufferSize int           `mapstructure:"stream_buffer_size"`
}

// ArbitrageConfig represents opportunity detection configuration
type ArbitrageConfig struct {
	MinProfitBps float64       `mapstructure:"min_profit_bps"`
	MaxTickAge   time.Duration `mapstructure:"max_tick_age"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	// Load .env if present so API keys can stay out of the config file.
	_ = godotenv.Load()

	configFile := "configs/config.json"
	if envFile := os.Getenv("CONFIG_FILE"); envFile != "" {
		configFile = envFile
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	v.SetEnvPrefix("ARBIFLOW")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("ingest.poll_interval", "1s")
	v.SetDefault("ingest.stream_buffer_size", 4096)
	v.SetDefault("arbitrage.min_profit_bps", 10.0)
	v.SetDefault("arbitrage.max_tick_age", "5s")
	v.SetDefault("arbitrage.scan_interval", "1s")
}
