package weather

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/observability"
)

var (
	// ErrNoProviders is returned when the service has no providers to ask.
	ErrNoProviders = errors.New("no weather providers configured")
	// ErrNoReadings is returned when every provider failed. The last good
	// snapshot, if any, is left in place.
	ErrNoReadings = errors.New("no weather provider returned data")
	// ErrNoForecast is returned when no forecast provider returned data.
	ErrNoForecast = errors.New("no forecast data available")
)

// MaxForecastDays is the longest forecast providers are asked for.
const MaxForecastDays = 7

// Service orchestrates fetching from multiple providers and persisting snapshots.
type Service struct {
	store     SnapshotStore
	providers []Provider
	geocoder  Geocoder
	metrics   *observability.Metrics
	logger    *zap.Logger
	clock     clockwork.Clock
}

// NewService creates a new Service. geocoder may be nil, in which case
// locations without coordinates go to providers as given.
func NewService(store SnapshotStore, providers []Provider, geocoder Geocoder, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		providers: providers,
		geocoder:  geocoder,
		metrics:   metrics,
		logger:    observability.OrNop(logger),
		clock:     clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source used for snapshot freshness.
func (s *Service) SetClock(c clockwork.Clock) {
	s.clock = c
}

// resolve fills in coordinates for postal-code and city locations so that
// coordinate-only providers can serve them. Failures leave loc unchanged.
func (s *Service) resolve(ctx context.Context, loc Location) Location {
	if s.geocoder == nil || loc.HasCoordinates() {
		return loc
	}
	resolved, err := s.geocoder.Geocode(ctx, loc)
	if err != nil {
		s.logger.Warn("geocode location", zap.String("location", loc.Key()), zap.Error(err))
		return loc
	}
	return resolved
}

// FetchAndStore fetches data from all providers concurrently for the given location,
// aggregates successful readings, and stores a snapshot under loc's key.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) (WeatherSnapshot, error) {
	if len(s.providers) == 0 {
		return WeatherSnapshot{}, ErrNoProviders
	}
	target := s.resolve(ctx, loc)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []ProviderReading
	)

	for _, p := range s.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			start := time.Now()
			r, err := p.Fetch(ctx, target)
			s.metrics.WeatherFetchDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				// Partial success is fine; one provider failing is not fatal.
				s.metrics.WeatherFetches.WithLabelValues(p.Name(), "error").Inc()
				s.logger.Warn("provider fetch failed",
					zap.String("provider", p.Name()),
					zap.String("location", loc.Key()),
					zap.Error(err),
				)
				return
			}
			s.metrics.WeatherFetches.WithLabelValues(p.Name(), "success").Inc()

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(readings) == 0 {
		return WeatherSnapshot{}, fmt.Errorf("%w for %s", ErrNoReadings, loc.Key())
	}

	// Goroutines finish in any order; sort so aggregation is reproducible.
	sort.Slice(readings, func(i, j int) bool { return readings[i].ProviderName < readings[j].ProviderName })

	snapshot := AggregateReadings(target, readings).Rounded()
	if err := s.store.SaveSnapshot(ctx, loc, snapshot); err != nil {
		return snapshot, fmt.Errorf("save snapshot for %s: %w", loc.Key(), err)
	}
	s.logger.Debug("stored weather snapshot",
		zap.String("location", loc.Key()),
		zap.Int("providers", len(readings)),
	)
	return snapshot, nil
}

// Current returns the latest stored snapshot when it is younger than maxAge,
// and otherwise fetches a fresh one.
func (s *Service) Current(ctx context.Context, loc Location, maxAge time.Duration) (WeatherSnapshot, error) {
	latest, err := s.store.GetLatest(ctx, loc)
	if err == nil && s.clock.Since(latest.Timestamp) <= maxAge {
		return latest, nil
	}
	return s.FetchAndStore(ctx, loc)
}

// GetForecast fetches multi-day forecasts from providers that support it,
// aggregates them per day, and returns at most days entries.
func (s *Service) GetForecast(ctx context.Context, loc Location, days int) (Forecast, error) {
	if days <= 0 || days > MaxForecastDays {
		return nil, fmt.Errorf("days must be between 1 and %d", MaxForecastDays)
	}
	target := s.resolve(ctx, loc)

	type dayKey string

	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		dayReadings   = make(map[dayKey][]ProviderReading)
		dayTimestamps = make(map[dayKey]time.Time)
	)

	for _, p := range s.providers {
		fp, ok := p.(ForecastProvider)
		if !ok {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			readings, err := fp.FetchForecast(ctx, target, days)
			if err != nil {
				s.metrics.WeatherFetches.WithLabelValues(fp.Name(), "error").Inc()
				s.logger.Warn("provider forecast failed",
					zap.String("provider", fp.Name()),
					zap.String("location", loc.Key()),
					zap.Error(err),
				)
				return
			}
			s.metrics.WeatherFetches.WithLabelValues(fp.Name(), "success").Inc()

			mu.Lock()
			defer mu.Unlock()

			for _, r := range readings {
				ts := r.Timestamp.UTC()
				k := dayKey(ts.Format(time.DateOnly))

				dayReadings[k] = append(dayReadings[k], r)

				if _, exists := dayTimestamps[k]; !exists {
					dayTimestamps[k] = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
				}
			}
		}()
	}

	wg.Wait()

	if len(dayReadings) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoForecast, loc.Key())
	}

	keys := make([]string, 0, len(dayReadings))
	for k := range dayReadings {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	forecast := make(Forecast, 0, days)
	for _, k := range keys {
		if len(forecast) >= days {
			break
		}

		readings := dayReadings[dayKey(k)]
		sort.Slice(readings, func(i, j int) bool { return readings[i].ProviderName < readings[j].ProviderName })

		snapshot := AggregateReadings(target, readings).Rounded()
		snapshot.Timestamp = dayTimestamps[dayKey(k)]
		forecast = append(forecast, snapshot)
	}

	return forecast, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(ctx context.Context, loc Location) (WeatherSnapshot, error) {
	return s.store.GetLatest(ctx, loc)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, loc Location, from, to time.Time) ([]WeatherSnapshot, error) {
	return s.store.GetRange(ctx, loc, from, to)
}
