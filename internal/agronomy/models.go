package agronomy

// Reading is the set of environmental conditions a plot is scored against.
// Bounds are enforced by ValidateReading before any scoring happens.
type Reading struct {
	Temperature float64 `json:"temperature" validate:"gte=-10,lte=50"` // °C
	Humidity    float64 `json:"humidity" validate:"gte=0,lte=100"`     // %
	SoilPH      float64 `json:"ph" validate:"gte=0,lte=14"`
	Rainfall    float64 `json:"rainfall" validate:"gte=0,lte=5000"` // mm per year
}

// Range describes the tolerated band of one environmental factor for a crop.
type Range struct {
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Optimal float64 `json:"optimal" yaml:"optimal"`
}

// Contains reports whether v lies inside [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) valid() bool {
	return r.Min <= r.Optimal && r.Optimal <= r.Max
}

// Profile is one crop's growing requirements.
type Profile struct {
	CropID      string `json:"crop" yaml:"crop"`
	Temperature Range  `json:"temperature" yaml:"temperature"`
	Humidity    Range  `json:"humidity" yaml:"humidity"`
	PH          Range  `json:"ph" yaml:"ph"`
	Rainfall    Range  `json:"rainfall" yaml:"rainfall"`
	Description string `json:"description" yaml:"description"`
}

// SuitabilityResult is the score of a single crop for a reading.
type SuitabilityResult struct {
	CropID           string  `json:"crop"`
	SuitabilityScore int     `json:"suitabilityScore"` // 0-100
	Confidence       float64 `json:"confidence"`       // 0-0.95
	Reason           string  `json:"reason"`
}

// YieldPrediction is an estimated yield in tons per acre.
type YieldPrediction struct {
	CropID                string  `json:"crop"`
	PredictedYield        float64 `json:"predictedYield"`
	Confidence            float64 `json:"confidence"`
	BasedOnHistoricalData bool    `json:"basedOnHistoricalData"`
}
