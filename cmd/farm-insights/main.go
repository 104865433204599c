package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/adapter/kafka"
	"github.com/i474232898/farm-insights/internal/agronomy"
	httpapi "github.com/i474232898/farm-insights/internal/api/http"
	"github.com/i474232898/farm-insights/internal/config"
	"github.com/i474232898/farm-insights/internal/farm"
	"github.com/i474232898/farm-insights/internal/observability"
	"github.com/i474232898/farm-insights/internal/pricing"
	"github.com/i474232898/farm-insights/internal/scheduler"
	"github.com/i474232898/farm-insights/internal/store"
	"github.com/i474232898/farm-insights/internal/weather"
	"github.com/i474232898/farm-insights/internal/weather/providers"
)

const geocodeCacheSize = 1024

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("farm-insights stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	metrics := observability.NewMetrics()

	st, err := store.Open(store.Options{
		Driver:     cfg.StoreDriver,
		SQLitePath: cfg.SQLitePath,
		MaxHistory: cfg.StoreMaxHistory,
		MaxAge:     cfg.StoreMaxAge,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	log.Info("crop catalog loaded", zap.Int("crops", catalog.Len()), zap.String("path", cfg.CatalogPath))

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// Each provider retries and trips its own breaker. Open-Meteo needs
	// no key; the others join only when configured.
	provs := []weather.Provider{providers.NewOpenMeteoProvider(httpClient)}
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}

	var geocoder weather.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geocoder = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey, geocodeCacheSize)
	} else {
		log.Info("no geocoder key; Open-Meteo serves coordinate lookups only")
	}

	weatherSvc := weather.NewService(st, provs, geocoder, metrics, log.Named("weather"))

	var publisher pricing.Publisher
	if cfg.KafkaEnabled() {
		kp := kafka.NewPredictionPublisher(cfg.KafkaBrokers, cfg.KafkaPredictionTopic, log.Named("kafka"))
		defer kp.Close()
		publisher = kp
	}
	priceSvc := pricing.NewService(st, publisher, metrics, log.Named("pricing"))

	farmSvc := farm.NewService(
		st,
		agronomy.NewScorer(catalog),
		agronomy.NewEstimator(agronomy.DefaultBaseYieldTable()),
		weatherSvc,
		cfg.WeatherMaxAge,
		metrics,
		log.Named("farm"),
	)

	// Scheduler that keeps plot weather and the prediction cache warm.
	sched := scheduler.New(scheduler.Config{
		WeatherInterval:    cfg.FetchInterval,
		PredictionInterval: cfg.PredictionRefreshInterval,
		YearsAhead:         cfg.DefaultYearsAhead,
	}, farmSvc, weatherSvc, priceSvc, log.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "farm-insights",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             16 * 1024 * 1024,
		ErrorHandler:          httpapi.NewErrorHandler(log),
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "farm-insights",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Farm:              farmSvc,
		Prices:            priceSvc,
		Weather:           weatherSvc,
		DefaultYearsAhead: cfg.DefaultYearsAhead,
		WeatherMaxAge:     cfg.WeatherMaxAge,
		Logger:            log.Named("http"),
	})

	// Start server with graceful shutdown
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		errc <- app.Listen(":" + cfg.Port)
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	return nil
}

// loadCatalog returns the built-in catalog, or the one at path when set.
func loadCatalog(path string) (*agronomy.Catalog, error) {
	if path == "" {
		return agronomy.DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crop catalog: %w", err)
	}
	defer f.Close()

	c, err := agronomy.LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("load crop catalog %s: %w", path, err)
	}
	return c, nil
}
