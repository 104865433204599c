package weather

import (
	"context"
	"time"
)

// ProviderReading is one upstream's answer, already converted to metric
// units so readings from different sources can be averaged.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time

	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
	PressureHpa  float64
	PrecipMm     float64
	Condition    Condition
	Summary      string
}

// Provider is a source of current conditions.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (ProviderReading, error)
}

// ForecastProvider also returns daily forecasts, one reading per day
// starting today.
type ForecastProvider interface {
	Provider
	FetchForecast(ctx context.Context, loc Location, days int) ([]ProviderReading, error)
}

// Geocoder turns a postal code or city into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, loc Location) (Location, error)
}

// SnapshotStore keeps aggregated snapshots per location.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, loc Location, snapshot WeatherSnapshot) error
	GetLatest(ctx context.Context, loc Location) (WeatherSnapshot, error)
	GetRange(ctx context.Context, loc Location, from, to time.Time) ([]WeatherSnapshot, error)
}
