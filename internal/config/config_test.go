package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadClean(t)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4317, cfg.GRPC.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.Server.MaxRequestSize)
	assert.Equal(t, "heimsight", cfg.ClickHouse.Database)
	assert.Equal(t, StoreClickHouse, cfg.Store)
	assert.Equal(t, time.Hour, cfg.Monitor.Interval)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HEIMSIGHT_PORT", "9090")
	t.Setenv("HEIMSIGHT_GRPC_PORT", "5317")
	t.Setenv("HEIMSIGHT_DB_NAME", "observability")
	t.Setenv("HEIMSIGHT_STORE", "memory")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := loadClean(t)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5317, cfg.GRPC.Port)
	assert.Equal(t, "observability", cfg.ClickHouse.Database)
	assert.True(t, cfg.IsMemoryStore())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			GRPC:    GRPCConfig{Port: 4317},
			Store:   StoreMemory,
			Monitor: MonitorConfig{Interval: time.Hour},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.GRPC.Port = cfg.Server.Port
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Store = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Store = StoreClickHouse
	cfg.ClickHouse.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Monitor.Interval = 0
	assert.Error(t, cfg.Validate())
}
