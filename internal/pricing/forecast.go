package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInsufficientData means the history cannot support a forecast: fewer
	// than two records, or every record from the same year. It is an expected
	// outcome that callers surface as "need more data", not a failure.
	ErrInsufficientData = errors.New("insufficient price history")
	// ErrInvalidHorizon is returned for a forecast horizon outside
	// 1..MaxYearsAhead.
	ErrInvalidHorizon = errors.New("years ahead must be between 1 and 50")
)

const (
	// MinHistoryPoints is the smallest history PredictPrice will fit.
	MinHistoryPoints = 2
	// MaxYearsAhead is the longest horizon a linear trend is extrapolated.
	MaxYearsAhead = 50
)

func checkHorizon(yearsAhead int) error {
	if yearsAhead < 1 || yearsAhead > MaxYearsAhead {
		return fmt.Errorf("%w: got %d", ErrInvalidHorizon, yearsAhead)
	}
	return nil
}

// trendThresholdPct is the percent change beyond which a forecast counts as
// increasing or decreasing.
const trendThresholdPct = 2.0

// PredictPrice fits a linear trend to one crop's price history and
// extrapolates it yearsAhead years past the latest observed year.
//
// The history is sorted by year but not de-duplicated: repeated years weigh
// more in the fit. The input slice is not modified.
func PredictPrice(history []Record, yearsAhead int) (*Prediction, error) {
	if err := checkHorizon(yearsAhead); err != nil {
		return nil, err
	}
	if len(history) < MinHistoryPoints {
		return nil, ErrInsufficientData
	}

	sorted := make([]Record, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	years := make([]float64, len(sorted))
	prices := make([]float64, len(sorted))
	for i, r := range sorted {
		years[i] = float64(r.Year)
		prices[i] = r.PricePerPound
	}

	fit, err := FitLinear(years, prices)
	if errors.Is(err, ErrDegenerateSeries) {
		return nil, fmt.Errorf("%w: all %d records are from %d", ErrInsufficientData, len(sorted), sorted[0].Year)
	}
	if err != nil {
		return nil, err
	}

	last := sorted[len(sorted)-1]
	predictionYear := last.Year + yearsAhead
	predicted := fit.At(float64(predictionYear))

	return &Prediction{
		CropName:               sorted[0].CropName,
		Category:               sorted[0].Category,
		PredictionYear:         predictionYear,
		PredictedPricePerPound: round2(predicted),
		Trend:                  classifyTrend(last.PricePerPound, predicted),
		Confidence:             round2(fit.RSquared),
		HistoricalDataPoints:   len(sorted),
	}, nil
}

// classifyTrend compares the forecast with the last observed price. A last
// price of zero has no percent change, so the sign of the forecast decides.
func classifyTrend(lastPrice, predicted float64) Trend {
	var change float64
	if lastPrice == 0 {
		change = math.Copysign(math.Inf(1), predicted)
		if predicted == 0 {
			change = 0
		}
	} else {
		change = (predicted - lastPrice) / lastPrice * 100
	}

	switch {
	case change > trendThresholdPct:
		return TrendIncreasing
	case change < -trendThresholdPct:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
