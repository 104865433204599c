package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// AppConfig holds the service configuration. Values come from the
// environment (optionally seeded from .env) or, when CONFIG_FILE is set, from
// that YAML file with environment overrides. API keys are environment only.
type AppConfig struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"8080"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"10s"`

	OpenWeatherAPIKey string `yaml:"-" env:"OPENWEATHER_API_KEY"`
	WeatherAPIKey     string `yaml:"-" env:"WEATHERAPI_API_KEY"`
	// GeocoderAPIKey enables Google geocoding, which Open-Meteo needs for
	// postal-code and city lookups.
	GeocoderAPIKey string `yaml:"-" env:"GEOCODER_API_KEY"`

	// FetchInterval controls how often weather is refreshed for plot locations.
	FetchInterval             time.Duration `yaml:"fetch_interval" env:"FETCH_INTERVAL" env-default:"15m"`
	PredictionRefreshInterval time.Duration `yaml:"prediction_refresh_interval" env:"PREDICTION_REFRESH_INTERVAL" env-default:"24h"`
	// WeatherMaxAge is how old a stored snapshot may be before live
	// recommendations fetch a new one.
	WeatherMaxAge time.Duration `yaml:"weather_max_age" env:"WEATHER_MAX_AGE" env-default:"30m"`

	StoreDriver string `yaml:"store_driver" env:"STORE_DRIVER" env-default:"memory"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"data/farm-insights.db"`

	// Snapshot retention per location.
	StoreMaxHistory int           `yaml:"store_max_history" env:"STORE_MAX_HISTORY" env-default:"96"` // roughly 24h at 15-minute intervals
	StoreMaxAge     time.Duration `yaml:"store_max_age" env:"STORE_MAX_AGE" env-default:"24h"`

	// CatalogPath optionally replaces the built-in crop catalog.
	CatalogPath string `yaml:"catalog_path" env:"CATALOG_PATH"`

	KafkaBrokers         []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	KafkaPredictionTopic string   `yaml:"kafka_prediction_topic" env:"KAFKA_PREDICTION_TOPIC" env-default:"price-predictions"`

	DefaultYearsAhead int `yaml:"default_years_ahead" env:"DEFAULT_YEARS_AHEAD" env-default:"1"`
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StoreSQLite, c.StoreDriver))
	}

	if c.FetchInterval < time.Minute {
		errs = append(errs, fmt.Errorf("FETCH_INTERVAL must be at least 1m, got %s", c.FetchInterval))
	}
	if c.PredictionRefreshInterval < time.Minute {
		errs = append(errs, fmt.Errorf("PREDICTION_REFRESH_INTERVAL must be at least 1m, got %s", c.PredictionRefreshInterval))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if c.StoreMaxHistory < 0 {
		errs = append(errs, fmt.Errorf("STORE_MAX_HISTORY must not be negative, got %d", c.StoreMaxHistory))
	}
	if c.DefaultYearsAhead < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_YEARS_AHEAD must be at least 1, got %d", c.DefaultYearsAhead))
	}

	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers

	return errors.Join(errs...)
}

// KafkaEnabled reports whether predictions should be published to Kafka.
func (c *AppConfig) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaPredictionTopic != ""
}
