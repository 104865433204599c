package farm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/agronomy"
	"github.com/i474232898/farm-insights/internal/observability"
	"github.com/i474232898/farm-insights/internal/weather"
)

// ErrNoCrop is returned when a yield is requested for a plot with no crop
// given and none planted.
var ErrNoCrop = errors.New("no crop given and plot has no current crop")

var validate = validator.New()

// Repository persists plots. Stores in internal/store satisfy it.
type Repository interface {
	CreatePlot(ctx context.Context, p Plot) (Plot, error)
	GetPlot(ctx context.Context, id string) (Plot, error)
	ListPlots(ctx context.Context) ([]Plot, error)
	UpdatePlot(ctx context.Context, p Plot) (Plot, error)
	DeletePlot(ctx context.Context, id string) error
}

// WeatherSource supplies current conditions for live recommendations.
type WeatherSource interface {
	Current(ctx context.Context, loc weather.Location, maxAge time.Duration) (weather.WeatherSnapshot, error)
}

// Service manages plots and runs the agronomy models against them.
type Service struct {
	repo          Repository
	scorer        *agronomy.Scorer
	estimator     *agronomy.Estimator
	weather       WeatherSource
	maxWeatherAge time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewService creates a Service. weather may be nil, which disables live
// overlays.
func NewService(
	repo Repository,
	scorer *agronomy.Scorer,
	estimator *agronomy.Estimator,
	weather WeatherSource,
	maxWeatherAge time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:          repo,
		scorer:        scorer,
		estimator:     estimator,
		weather:       weather,
		maxWeatherAge: maxWeatherAge,
		metrics:       metrics,
		logger:        observability.OrNop(logger),
	}
}

// ValidatePlot checks the plot's fields and its growing conditions. The
// returned error is an *agronomy.ValidationError listing every problem.
func ValidatePlot(p Plot) error {
	var problems []string
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}

	var rerr *agronomy.ValidationError
	if err := agronomy.ValidateReading(p.Reading()); errors.As(err, &rerr) {
		problems = append(problems, rerr.Problems...)
	}

	if len(problems) > 0 {
		return &agronomy.ValidationError{Problems: problems}
	}
	return nil
}

func fieldProblem(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())
	}
	return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
}

// CreatePlot validates p, normalises its crop name and stores it under a new ID.
func (s *Service) CreatePlot(ctx context.Context, p Plot) (Plot, error) {
	if err := ValidatePlot(p); err != nil {
		return Plot{}, err
	}
	p.CurrentCrop = strings.ToLower(strings.TrimSpace(p.CurrentCrop))
	return s.repo.CreatePlot(ctx, p)
}

// GetPlot returns the plot with id.
func (s *Service) GetPlot(ctx context.Context, id string) (Plot, error) {
	return s.repo.GetPlot(ctx, id)
}

// ListPlots returns every stored plot.
func (s *Service) ListPlots(ctx context.Context) ([]Plot, error) {
	return s.repo.ListPlots(ctx)
}

// UpdatePlot replaces the stored plot with id. ID and CreatedAt are kept.
func (s *Service) UpdatePlot(ctx context.Context, id string, p Plot) (Plot, error) {
	if err := ValidatePlot(p); err != nil {
		return Plot{}, err
	}
	existing, err := s.repo.GetPlot(ctx, id)
	if err != nil {
		return Plot{}, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.CurrentCrop = strings.ToLower(strings.TrimSpace(p.CurrentCrop))
	return s.repo.UpdatePlot(ctx, p)
}

// DeletePlot removes the plot with id.
func (s *Service) DeletePlot(ctx context.Context, id string) error {
	return s.repo.DeletePlot(ctx, id)
}

// RecordHarvest stores the actual yield (tons per acre) harvested from a plot.
func (s *Service) RecordHarvest(ctx context.Context, id string, yield float64, on time.Time) (Plot, error) {
	if yield < 0 || math.IsNaN(yield) {
		return Plot{}, &agronomy.ValidationError{Problems: []string{"Yield must be zero or more tons per acre"}}
	}
	p, err := s.repo.GetPlot(ctx, id)
	if err != nil {
		return Plot{}, err
	}
	p.ActualYield = &yield
	p.YieldDate = &on
	return s.repo.UpdatePlot(ctx, p)
}

// Recommend ranks crops for an arbitrary reading.
func (s *Service) Recommend(r agronomy.Reading, k int) ([]agronomy.SuitabilityResult, error) {
	res, err := s.scorer.Recommend(r, k)
	if err != nil {
		return nil, err
	}
	s.metrics.Recommendations.Inc()
	return res, nil
}

// EstimateYield predicts the yield of crop under an arbitrary reading.
func (s *Service) EstimateYield(r agronomy.Reading, crop string) (agronomy.YieldPrediction, error) {
	if err := agronomy.ValidateReading(r); err != nil {
		return agronomy.YieldPrediction{}, err
	}
	s.metrics.YieldPredictions.Inc()
	return s.estimator.PredictYield(r, crop), nil
}

// PlotReading returns the conditions to score a plot with. With live set
// and a weather source configured, current temperature and humidity at the
// plot replace the recorded ones; a failed lookup falls back to the record.
func (s *Service) PlotReading(ctx context.Context, p Plot, live bool) (agronomy.Reading, bool) {
	r := p.Reading()
	if !live || s.weather == nil {
		return r, false
	}
	loc, ok := p.WeatherLocation()
	if !ok {
		return r, false
	}

	snap, err := s.weather.Current(ctx, loc, s.maxWeatherAge)
	if err != nil {
		s.logger.Warn("live weather for plot", zap.String("plot", p.ID), zap.Error(err))
		return r, false
	}
	r.Temperature = snap.Temperature
	r.Humidity = snap.Humidity
	return r, true
}

// RecommendForPlot ranks crops for a stored plot.
func (s *Service) RecommendForPlot(ctx context.Context, id string, live bool, k int) (PlotRecommendations, error) {
	p, err := s.repo.GetPlot(ctx, id)
	if err != nil {
		return PlotRecommendations{}, err
	}

	r, usedLive := s.PlotReading(ctx, p, live)
	recs, err := s.Recommend(r, k)
	if err != nil {
		return PlotRecommendations{}, err
	}
	return PlotRecommendations{
		PlotID:          p.ID,
		Reading:         r,
		LiveWeather:     usedLive,
		Recommendations: recs,
	}, nil
}

// PredictPlotYield predicts the yield of crop, or of the plot's current crop
// when crop is empty, and scales it to the plot's size.
func (s *Service) PredictPlotYield(ctx context.Context, id, crop string) (PlotYield, error) {
	p, err := s.repo.GetPlot(ctx, id)
	if err != nil {
		return PlotYield{}, err
	}
	if crop == "" {
		crop = p.CurrentCrop
	}
	if crop == "" {
		return PlotYield{}, ErrNoCrop
	}

	pred, err := s.EstimateYield(p.Reading(), crop)
	if err != nil {
		return PlotYield{}, err
	}
	return PlotYield{
		PlotID:          p.ID,
		YieldPrediction: pred,
		TotalYield:      agronomy.TotalYield(pred.PredictedYield, p.Size),
	}, nil
}

// Analytics summarises recorded yields across all plots.
func (s *Service) Analytics(ctx context.Context) (Analytics, error) {
	plots, err := s.repo.ListPlots(ctx)
	if err != nil {
		return Analytics{}, err
	}

	var harvests []agronomy.Harvest
	for _, p := range plots {
		if h, ok := p.Harvest(); ok {
			harvests = append(harvests, h)
		}
	}
	return Analytics{
		YieldSummary:   agronomy.AnalyzeYields(harvests),
		PlotsWithYield: len(harvests),
		TotalPlots:     len(plots),
	}, nil
}

// WeatherLocations lists the distinct weather locations of all plots.
func (s *Service) WeatherLocations(ctx context.Context) ([]weather.Location, error) {
	plots, err := s.repo.ListPlots(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var locs []weather.Location
	for _, p := range plots {
		loc, ok := p.WeatherLocation()
		if !ok || seen[loc.Key()] {
			continue
		}
		seen[loc.Key()] = true
		locs = append(locs, loc)
	}
	return locs, nil
}
