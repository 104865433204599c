package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/observability"
	"github.com/i474232898/farm-insights/internal/weather"
)

const jobTimeout = 30 * time.Second

// LocationSource lists the places worth keeping weather for.
type LocationSource interface {
	WeatherLocations(ctx context.Context) ([]weather.Location, error)
}

// WeatherFetcher fetches and stores a snapshot for one location.
type WeatherFetcher interface {
	FetchAndStore(ctx context.Context, loc weather.Location) (weather.WeatherSnapshot, error)
}

// PredictionRefresher recomputes cached price predictions.
type PredictionRefresher interface {
	RefreshPredictions(ctx context.Context, yearsAhead int) (int, error)
}

// Config sets the job intervals. A zero interval disables its job.
type Config struct {
	WeatherInterval    time.Duration
	PredictionInterval time.Duration
	YearsAhead         int
}

// Scheduler periodically refreshes weather for plot locations and the
// price prediction cache.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	cfg         Config
	locations   LocationSource
	weather     WeatherFetcher
	predictions PredictionRefresher
	logger      *zap.Logger
}

// New creates a new Scheduler. predictions may be nil.
func New(cfg Config, locations LocationSource, fetcher WeatherFetcher, predictions PredictionRefresher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		cfg:         cfg,
		locations:   locations,
		weather:     fetcher,
		predictions: predictions,
		logger:      observability.OrNop(logger),
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.WeatherInterval > 0 && s.locations != nil && s.weather != nil {
		_, err := s.scheduler.Every(s.cfg.WeatherInterval).Do(s.runJob("weather refresh", func(ctx context.Context) {
			s.RefreshWeather(ctx)
		}))
		if err != nil {
			return err
		}
	}

	if s.cfg.PredictionInterval > 0 && s.predictions != nil {
		_, err := s.scheduler.Every(s.cfg.PredictionInterval).Do(s.runJob("prediction refresh", func(ctx context.Context) {
			s.RefreshPredictions(ctx)
		}))
		if err != nil {
			return err
		}
	}

	if s.scheduler.Len() == 0 {
		s.logger.Info("scheduler: nothing to schedule")
		return nil
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runJob(name string, fn func(ctx context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		s.logger.Debug("scheduler: running job", zap.String("job", name))
		fn(ctx)
		s.logger.Debug("scheduler: completed job", zap.String("job", name), zap.Duration("took", time.Since(started)))
	}
}

// RefreshWeather fetches weather for every plot location concurrently and
// returns how many fetches succeeded.
func (s *Scheduler) RefreshWeather(ctx context.Context) int {
	locs, err := s.locations.WeatherLocations(ctx)
	if err != nil {
		s.logger.Error("scheduler: list plot locations", zap.Error(err))
		return 0
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, loc := range locs {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := s.weather.FetchAndStore(ctx, loc); err != nil {
				s.logger.Warn("scheduler: fetch failed", zap.String("location", loc.Key()), zap.Error(err))
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return ok
}

// RefreshPredictions recomputes the forecasts of every known crop.
func (s *Scheduler) RefreshPredictions(ctx context.Context) int {
	n, err := s.predictions.RefreshPredictions(ctx, s.cfg.YearsAhead)
	if err != nil {
		s.logger.Error("scheduler: refresh predictions", zap.Error(err))
	}
	s.logger.Info("scheduler: refreshed predictions", zap.Int("crops", n))
	return n
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
