package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/observability"
)

// Import sources, used as metric labels and in logs.
const (
	SourceGeneric  = "generic"
	SourceWorkbook = "workbook"
	SourceUSDA     = "usda"
)

// ErrNoValidData is reported when an import yields no records at all.
var ErrNoValidData = errors.New("no valid data found in CSV files")

// Repository is the persistence the price service needs. Stores in
// internal/store satisfy it.
type Repository interface {
	AddPrices(ctx context.Context, records []Record) error
	PriceHistory(ctx context.Context, crop string) ([]Record, error)
	Crops(ctx context.Context) ([]string, error)

	// GetPrediction returns nil, nil when nothing is cached.
	GetPrediction(ctx context.Context, crop string, year int) (*Prediction, error)
	SavePrediction(ctx context.Context, p Prediction) error
	DeletePredictions(ctx context.Context, crop string) error

	// ClearPrices drops every record and cached prediction.
	ClearPrices(ctx context.Context) error
}

// Publisher receives every freshly computed prediction.
type Publisher interface {
	PublishPrediction(ctx context.Context, p Prediction) error
}

// ImportResult reports the outcome of an import. A failed import always has
// Count 0.
type ImportResult struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Skipped []Skipped `json:"skipped,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func failedImport(err error) ImportResult {
	return ImportResult{Success: false, Count: 0, Error: err.Error()}
}

// Service stores imported prices and serves forecasts, caching each
// prediction until the crop's history changes.
type Service struct {
	repo      Repository
	publisher Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	clock     clockwork.Clock
}

// NewService creates a Service. publisher may be nil.
func NewService(repo Repository, publisher Publisher, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    observability.OrNop(logger),
		clock:     clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source that stamps predictions.
func (s *Service) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Crops lists the distinct crop names with stored prices.
func (s *Service) Crops(ctx context.Context) ([]string, error) {
	return s.repo.Crops(ctx)
}

// History returns a crop's prices in ascending year order.
func (s *Service) History(ctx context.Context, crop string) ([]Record, error) {
	return s.repo.PriceHistory(ctx, NormalizeCropName(crop))
}

// Clear removes all stored prices and predictions.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.ClearPrices(ctx); err != nil {
		return fmt.Errorf("clear prices: %w", err)
	}
	s.logger.Info("cleared price data")
	return nil
}

// Predict returns the forecast for crop yearsAhead years past its latest
// price, from the cache when the cached entry was computed from the same
// number of data points. ErrInsufficientData means "need more data".
func (s *Service) Predict(ctx context.Context, crop string, yearsAhead int) (*Prediction, error) {
	if err := checkHorizon(yearsAhead); err != nil {
		return nil, err
	}
	crop = NormalizeCropName(crop)

	history, err := s.repo.PriceHistory(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("load price history for %s: %w", crop, err)
	}
	if len(history) < MinHistoryPoints {
		s.metrics.PricePredictions.WithLabelValues("insufficient").Inc()
		return nil, ErrInsufficientData
	}

	target := latestYear(history) + yearsAhead
	cached, err := s.repo.GetPrediction(ctx, crop, target)
	if err != nil {
		return nil, fmt.Errorf("load cached prediction for %s: %w", crop, err)
	}
	if cached != nil && cached.HistoricalDataPoints == len(history) {
		s.metrics.PricePredictions.WithLabelValues("cached").Inc()
		return cached, nil
	}

	p, err := PredictPrice(history, yearsAhead)
	if errors.Is(err, ErrInsufficientData) {
		s.metrics.PricePredictions.WithLabelValues("insufficient").Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.metrics.PricePredictions.WithLabelValues("computed").Inc()
	// A fresh prediction carries the same CreatedAt the cache will return.
	p.CreatedAt = s.clock.Now().UTC()

	if err := s.repo.SavePrediction(ctx, *p); err != nil {
		// The forecast is still valid; only the cache write failed.
		s.logger.Warn("cache prediction", zap.String("crop", crop), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishPrediction(ctx, *p); err != nil {
			s.logger.Warn("publish prediction", zap.String("crop", crop), zap.Error(err))
		}
	}
	return p, nil
}

// RefreshPredictions recomputes the forecast of every known crop. Crops
// without enough history are skipped.
func (s *Service) RefreshPredictions(ctx context.Context, yearsAhead int) (int, error) {
	crops, err := s.repo.Crops(ctx)
	if err != nil {
		return 0, fmt.Errorf("list crops: %w", err)
	}

	var refreshed int
	for _, crop := range crops {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		_, err := s.Predict(ctx, crop, yearsAhead)
		switch {
		case errors.Is(err, ErrInsufficientData):
			continue
		case err != nil:
			s.logger.Error("refresh prediction", zap.String("crop", crop), zap.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// ImportCSV parses and stores a generic price table.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) ImportResult {
	res, err := ParseCSV(r)
	if err != nil {
		return failedImport(err)
	}
	return s.store(ctx, SourceGeneric, res)
}

// ImportWorkbook parses and stores the first sheet of an .xlsx workbook.
func (s *Service) ImportWorkbook(ctx context.Context, r io.Reader) ImportResult {
	res, err := ParseWorkbook(r)
	if err != nil {
		return failedImport(err)
	}
	return s.store(ctx, SourceWorkbook, res)
}

// ImportUSDA parses the USDA vegetable and fruit retail price files for one
// year and stores their combined records, vegetables first. Either reader
// may be nil. The import fails only when both files together yield nothing.
func (s *Service) ImportUSDA(ctx context.Context, vegetables, fruits io.Reader, year int) ImportResult {
	var combined ParseResult
	for _, f := range []struct {
		r        io.Reader
		category Category
	}{
		{vegetables, CategoryVegetable},
		{fruits, CategoryFruit},
	} {
		if f.r == nil {
			continue
		}
		res, err := ParseUSDA(f.r, f.category, year)
		if err != nil {
			return failedImport(fmt.Errorf("parse %s file: %w", f.category, err))
		}
		combined.Records = append(combined.Records, res.Records...)
		combined.Skipped = append(combined.Skipped, res.Skipped...)
	}
	return s.store(ctx, SourceUSDA, combined)
}

func (s *Service) store(ctx context.Context, source string, res ParseResult) ImportResult {
	s.metrics.RowsSkipped.WithLabelValues(source).Add(float64(len(res.Skipped)))
	for _, sk := range res.Skipped {
		s.logger.Debug("skipped price row",
			zap.String("source", source),
			zap.Int("line", sk.Line),
			zap.String("reason", string(sk.Reason)),
		)
	}

	if len(res.Records) == 0 {
		r := failedImport(ErrNoValidData)
		r.Skipped = res.Skipped
		return r
	}

	if err := s.repo.AddPrices(ctx, res.Records); err != nil {
		s.logger.Error("store imported prices", zap.String("source", source), zap.Error(err))
		r := failedImport(fmt.Errorf("store prices: %w", err))
		r.Skipped = res.Skipped
		return r
	}

	seen := make(map[string]bool)
	for _, rec := range res.Records {
		if seen[rec.CropName] {
			continue
		}
		seen[rec.CropName] = true
		if err := s.repo.DeletePredictions(ctx, rec.CropName); err != nil {
			s.logger.Warn("invalidate cached predictions", zap.String("crop", rec.CropName), zap.Error(err))
		}
	}

	s.metrics.RowsImported.WithLabelValues(source).Add(float64(len(res.Records)))
	s.logger.Info("imported prices",
		zap.String("source", source),
		zap.Int("records", len(res.Records)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return ImportResult{Success: true, Count: len(res.Records), Skipped: res.Skipped}
}

func latestYear(history []Record) int {
	latest := history[0].Year
	for _, r := range history[1:] {
		latest = max(latest, r.Year)
	}
	return latest
}

var filenameYear = regexp.MustCompile(`(?:19|20)\d{2}`)

// YearFromFilename extracts the first 19xx or 20xx run from a file name such
// as "Fruit-Prices-2022.csv".
func YearFromFilename(name string) (int, bool) {
	m := filenameYear.FindString(name)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	return y, err == nil
}
