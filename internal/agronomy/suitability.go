package agronomy

import (
	"math"
	"sort"
)

// Factor weights of the composite suitability score. They sum to 1.
const (
	TemperatureWeight = 0.30
	HumidityWeight    = 0.30
	PHWeight          = 0.20
	RainfallWeight    = 0.20
)

const (
	// DefaultTopK is how many crops Recommend returns when k is not positive.
	DefaultTopK = 5

	// confidenceBoost and confidenceCap shape the displayed confidence. This
	// is a presentation heuristic, not a probability.
	confidenceBoost = 0.10
	confidenceCap   = 0.95

	reasonSuffix = ". Best match for your climate conditions."
)

type factor struct {
	name   string
	rng    Range
	weight float64
	value  func(Reading) float64
}

func (p Profile) factors() []factor {
	return []factor{
		{name: "temperature", rng: p.Temperature, weight: TemperatureWeight, value: func(r Reading) float64 { return r.Temperature }},
		{name: "humidity", rng: p.Humidity, weight: HumidityWeight, value: func(r Reading) float64 { return r.Humidity }},
		{name: "ph", rng: p.PH, weight: PHWeight, value: func(r Reading) float64 { return r.SoilPH }},
		{name: "rainfall", rng: p.Rainfall, weight: RainfallWeight, value: func(r Reading) float64 { return r.Rainfall }},
	}
}

// Composite returns the weighted sum of factor scores of r against p, in [0, 1].
func Composite(r Reading, p Profile) float64 {
	var total float64
	for _, f := range p.factors() {
		total += FactorScore(f.value(r), f.rng) * f.weight
	}
	return total
}

// Scorer ranks catalog crops against environmental readings.
type Scorer struct {
	catalog *Catalog
}

// NewScorer creates a Scorer over the given catalog.
func NewScorer(catalog *Catalog) *Scorer {
	return &Scorer{catalog: catalog}
}

// Catalog returns the catalog the scorer was built with.
func (s *Scorer) Catalog() *Catalog {
	return s.catalog
}

// Score validates r and returns one result per catalog crop, in catalog order.
func (s *Scorer) Score(r Reading) ([]SuitabilityResult, error) {
	if err := ValidateReading(r); err != nil {
		return nil, err
	}

	results := make([]SuitabilityResult, 0, s.catalog.Len())
	for _, p := range s.catalog.profiles {
		results = append(results, scoreProfile(r, p))
	}
	return results, nil
}

// Recommend returns the k best-scoring crops, highest first. Ties keep
// catalog order. A non-positive k falls back to DefaultTopK.
func (s *Scorer) Recommend(r Reading, k int) ([]SuitabilityResult, error) {
	results, err := s.Score(r)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SuitabilityScore > results[j].SuitabilityScore
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func scoreProfile(r Reading, p Profile) SuitabilityResult {
	composite := Composite(r, p)
	return SuitabilityResult{
		CropID:           p.CropID,
		SuitabilityScore: int(roundHalfUp(composite * 100)),
		Confidence:       round2(math.Min(confidenceCap, composite+confidenceBoost)),
		Reason:           p.Description + reasonSuffix,
	}
}

// roundHalfUp rounds to the nearest integer with halves going up.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func round2(v float64) float64 {
	return roundHalfUp(v*100) / 100
}
