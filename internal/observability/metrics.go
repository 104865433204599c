package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "farm_insights"

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	Recommendations  prometheus.Counter
	YieldPredictions prometheus.Counter

	// Price forecasting and import.
	PricePredictions *prometheus.CounterVec // labels: outcome={computed,cached,insufficient}
	RowsImported     *prometheus.CounterVec // labels: source={generic,workbook,usda}
	RowsSkipped      *prometheus.CounterVec // labels: source={generic,workbook,usda}

	// Weather providers.
	WeatherFetches       *prometheus.CounterVec   // labels: provider, outcome={success,error}
	WeatherFetchDuration *prometheus.HistogramVec // labels: provider
}

func newCollectors() *Metrics {
	return &Metrics{
		Recommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Crop recommendation requests served.",
		}),
		YieldPredictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "yield_predictions_total",
			Help:      "Yield predictions computed.",
		}),
		PricePredictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_predictions_total",
			Help:      "Price prediction lookups by outcome.",
		}, []string{"outcome"}),
		RowsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_rows_imported_total",
			Help:      "Price rows accepted by import source.",
		}, []string{"source"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_rows_skipped_total",
			Help:      "Price rows dropped during import by source.",
		}, []string{"source"}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetches_total",
			Help:      "Weather provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WeatherFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_fetch_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Recommendations,
		m.YieldPredictions,
		m.PricePredictions,
		m.RowsImported,
		m.RowsSkipped,
		m.WeatherFetches,
		m.WeatherFetchDuration,
	}
}

// NewMetrics creates the collectors and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry so repeated calls
// from tests do not panic with "already registered".
func NewMetricsForTesting() *Metrics {
	m := newCollectors()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
