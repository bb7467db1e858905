// Package config provides configuration management for the Heimsight server.
//
// Configuration is loaded from multiple sources in this order:
// 1. Configuration files (YAML)
// 2. Environment variables (HEIMSIGHT_* and LOG_*)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store kinds selectable via HEIMSIGHT_STORE.
const (
	StoreClickHouse = "clickhouse"
	StoreMemory     = "memory"
)

// Config represents the complete application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Store      string           `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
}

// AppConfig contains application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
}

// GRPCConfig contains gRPC server configuration for OTLP ingestion.
type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

// ClickHouseConfig contains column-store connection configuration.
type ClickHouseConfig struct {
	URL            string `mapstructure:"url"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitorConfig contains data-age monitor configuration.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from files and the environment.
func Load() (*Config, error) {
	// Load .env if present (development convenience, ignored when missing)
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit environment bindings (documented surface)
	viper.BindEnv("server.host", "HEIMSIGHT_HOST")
	viper.BindEnv("server.port", "HEIMSIGHT_PORT")
	viper.BindEnv("grpc.port", "HEIMSIGHT_GRPC_PORT")
	viper.BindEnv("clickhouse.url", "HEIMSIGHT_DB_URL")
	viper.BindEnv("clickhouse.database", "HEIMSIGHT_DB_NAME")
	viper.BindEnv("clickhouse.user", "HEIMSIGHT_DB_USER")
	viper.BindEnv("clickhouse.password", "HEIMSIGHT_DB_PASSWORD")
	viper.BindEnv("clickhouse.auto_migrate", "HEIMSIGHT_AUTO_MIGRATE")
	viper.BindEnv("store", "HEIMSIGHT_STORE")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "heimsight")
	viper.SetDefault("app.version", "0.1.0")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.idle_timeout", 120*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("server.max_request_size", 10*1024*1024)

	viper.SetDefault("grpc.port", 4317)

	viper.SetDefault("clickhouse.url", "clickhouse://localhost:9000")
	viper.SetDefault("clickhouse.database", "heimsight")
	viper.SetDefault("clickhouse.auto_migrate", true)
	viper.SetDefault("clickhouse.migrations_path", "migrations/clickhouse")

	viper.SetDefault("store", StoreClickHouse)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("monitor.interval", time.Hour)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Server.Port == c.GRPC.Port {
		return fmt.Errorf("HTTP and gRPC ports must differ (both %d)", c.Server.Port)
	}
	switch c.Store {
	case StoreClickHouse, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (expected %q or %q)", c.Store, StoreClickHouse, StoreMemory)
	}
	if c.Store == StoreClickHouse && c.ClickHouse.URL == "" {
		return fmt.Errorf("HEIMSIGHT_DB_URL is required for the clickhouse store")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive: %s", c.Monitor.Interval)
	}
	return nil
}

// IsMemoryStore reports whether the in-memory backend is selected.
func (c *Config) IsMemoryStore() bool {
	return c.Store == StoreMemory
}
