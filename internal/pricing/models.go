package pricing

import (
	"strings"
	"time"
)

// Category is the produce group a price belongs to.
type Category string

const (
	CategoryFruit     Category = "fruit"
	CategoryVegetable Category = "vegetable"
)

// ParseCategory maps free text to a Category. Anything mentioning "fruit"
// is a fruit; everything else is a vegetable.
func ParseCategory(s string) Category {
	if strings.Contains(strings.ToLower(s), "fruit") {
		return CategoryFruit
	}
	return CategoryVegetable
}

// Trend classifies the direction of a price forecast.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Record is one retail price observation for a crop in a given year.
// Several records may share (CropName, Year); nothing enforces uniqueness.
type Record struct {
	ID            string    `json:"id,omitempty"`
	Year          int       `json:"year"`
	CropName      string    `json:"cropName"`
	Category      Category  `json:"category"`
	PricePerPound float64   `json:"priceUsdPerLb"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// Prediction is a forecast price for a crop derived from its history.
type Prediction struct {
	CropName               string    `json:"cropName"`
	Category               Category  `json:"category"`
	PredictionYear         int       `json:"predictionYear"`
	PredictedPricePerPound float64   `json:"predictedPriceUsdPerLb"`
	Trend                  Trend     `json:"trend"`
	Confidence             float64   `json:"confidence"`
	HistoricalDataPoints   int       `json:"historicalDataPoints"`
	CreatedAt              time.Time `json:"createdAt,omitempty"`
}

// NormalizeCropName is the canonical form crop names are stored and queried in.
func NormalizeCropName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
