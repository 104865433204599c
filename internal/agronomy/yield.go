package agronomy

import "math"

// DefaultBaseYield is the tons/acre assumed for crops missing from the base
// yield table.
const DefaultBaseYield = 3.0

const (
	optimalTemperature = 25.0
	optimalPH          = 6.5
)

// BaseYieldTable maps crops to their tons/acre under optimal conditions.
// The zero value is an empty table where every crop uses DefaultBaseYield.
type BaseYieldTable struct {
	yields map[string]float64
}

// NewBaseYieldTable copies the given crop yields into an immutable table.
func NewBaseYieldTable(yields map[string]float64) BaseYieldTable {
	t := BaseYieldTable{yields: make(map[string]float64, len(yields))}
	for crop, y := range yields {
		t.yields[normalizeCropID(crop)] = y
	}
	return t
}

// DefaultBaseYieldTable returns the built-in base yields.
func DefaultBaseYieldTable() BaseYieldTable {
	return NewBaseYieldTable(map[string]float64{
		"rice":        4.5,
		"maize":       6.0,
		"wheat":       3.5,
		"cotton":      2.8,
		"soybean":     3.2,
		"chickpea":    2.5,
		"pigeonpeas":  2.0,
		"mothbeans":   1.8,
		"mungbean":    1.5,
		"blackgram":   1.5,
		"lentil":      2.0,
		"pomegranate": 8.0,
		"banana":      25.0,
		"mango":       7.0,
		"grapes":      10.0,
		"watermelon":  15.0,
		"muskmelon":   12.0,
		"apple":       18.0,
		"orange":      20.0,
		"papaya":      30.0,
		"coconut":     4.0,
		"jute":        3.5,
		"coffee":      2.5,
	})
}

// BaseYield returns the base yield for crop, or DefaultBaseYield when the
// crop is unknown or listed with a zero yield.
func (t BaseYieldTable) BaseYield(crop string) float64 {
	if y, ok := t.yields[normalizeCropID(crop)]; ok && y != 0 {
		return y
	}
	return DefaultBaseYield
}

// Estimator predicts yields from environmental conditions.
type Estimator struct {
	table BaseYieldTable
}

// NewEstimator creates an Estimator over the given base yield table.
func NewEstimator(table BaseYieldTable) *Estimator {
	return &Estimator{table: table}
}

// YieldFactor returns the compounded environmental penalty for r, in (0, 1].
// Temperature, humidity, pH and rainfall penalties are applied in that order
// and every applicable one is applied.
func YieldFactor(r Reading) float64 {
	f := 1.0

	if d := math.Abs(r.Temperature - optimalTemperature); d > 5 {
		f *= math.Max(0.6, 1-d/50)
	}

	if r.Humidity < 40 || r.Humidity > 90 {
		f *= 0.85
	}

	if d := math.Abs(r.SoilPH - optimalPH); d > 1 {
		f *= math.Max(0.7, 1-d/10)
	}

	switch {
	case r.Rainfall < 500:
		f *= 0.8
	case r.Rainfall > 2000:
		f *= 0.9
	}

	return f
}

// PredictYield estimates tons/acre of crop under r.
func (e *Estimator) PredictYield(r Reading, crop string) YieldPrediction {
	factor := YieldFactor(r)
	return YieldPrediction{
		CropID:                crop,
		PredictedYield:        round2(e.table.BaseYield(crop) * factor),
		Confidence:            round2(factor),
		BasedOnHistoricalData: false,
	}
}
