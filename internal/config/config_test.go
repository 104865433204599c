package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "LOG_LEVEL", "HTTP_TIMEOUT",
		"OPENWEATHER_API_KEY", "WEATHERAPI_API_KEY", "GEOCODER_API_KEY",
		"FETCH_INTERVAL", "PREDICTION_REFRESH_INTERVAL", "WEATHER_MAX_AGE",
		"STORE_DRIVER", "SQLITE_PATH", "STORE_MAX_HISTORY", "STORE_MAX_AGE",
		"CATALOG_PATH", "KAFKA_BROKERS", "KAFKA_PREDICTION_TOPIC", "DEFAULT_YEARS_AHEAD",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	// Keep a developer's .env out of the way.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 24*time.Hour, cfg.PredictionRefreshInterval)
	assert.Equal(t, 30*time.Minute, cfg.WeatherMaxAge)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 96, cfg.StoreMaxHistory)
	assert.Equal(t, 24*time.Hour, cfg.StoreMaxAge)
	assert.Equal(t, 1, cfg.DefaultYearsAhead)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/farm.db")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("WEATHERAPI_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/farm.db", cfg.SQLitePath)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "secret", cfg.WeatherAPIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\nstore_driver: sqlite\ndefault_years_ahead: 3\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.DefaultYearsAhead)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad driver", map[string]string{"STORE_DRIVER": "postgres"}, "STORE_DRIVER"},
		{"short interval", map[string]string{"FETCH_INTERVAL": "10s"}, "FETCH_INTERVAL"},
		{"zero horizon", map[string]string{"DEFAULT_YEARS_AHEAD": "0"}, "DEFAULT_YEARS_AHEAD"},
		{"unparsable duration", map[string]string{"STORE_MAX_AGE": "soon"}, "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
