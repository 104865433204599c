package farm

import (
	"time"

	"github.com/i474232898/farm-insights/internal/agronomy"
	"github.com/i474232898/farm-insights/internal/weather"
)

// Plot is a field under management together with the growing conditions
// recorded for it.
type Plot struct {
	ID            string  `json:"id"`
	Name          string  `json:"name" validate:"required"`
	Size          float64 `json:"size" validate:"gt=0"` // acres
	Location      string  `json:"location"`
	SoilType      string  `json:"soilType"`
	CurrentCrop   string  `json:"currentCrop,omitempty"`
	SunlightHours float64 `json:"sunlightHours" validate:"gte=0,lte=24"`
	WaterAccess   string  `json:"waterAccess,omitempty"`

	// Growing conditions fed to the suitability scorer and yield estimator.
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`

	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	PostalCode string   `json:"postalCode,omitempty"`

	ActualYield *float64   `json:"actualYield,omitempty" validate:"omitempty,gte=0"` // tons per acre
	YieldDate   *time.Time `json:"yieldDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reading returns the plot's recorded growing conditions.
func (p Plot) Reading() agronomy.Reading {
	return agronomy.Reading{
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		SoilPH:      p.PH,
		Rainfall:    p.Rainfall,
	}
}

// WeatherLocation returns where to look the plot's weather up, preferring
// coordinates over the postal code. ok is false when the plot has neither.
func (p Plot) WeatherLocation() (loc weather.Location, ok bool) {
	switch {
	case p.Latitude != nil && p.Longitude != nil:
		return weather.Coordinates(*p.Latitude, *p.Longitude), true
	case p.PostalCode != "":
		return weather.Location{PostalCode: p.PostalCode}, true
	default:
		return weather.Location{}, false
	}
}

// Harvest converts a plot with a recorded yield into analytics input.
func (p Plot) Harvest() (agronomy.Harvest, bool) {
	if p.ActualYield == nil {
		return agronomy.Harvest{}, false
	}
	return agronomy.Harvest{Crop: p.CurrentCrop, ActualYield: *p.ActualYield, PlotSize: p.Size}, true
}

// PlotRecommendations is a plot's ranked crop list with the conditions it
// was computed from.
type PlotRecommendations struct {
	PlotID          string                       `json:"plotId"`
	Reading         agronomy.Reading             `json:"reading"`
	LiveWeather     bool                         `json:"liveWeather"`
	Recommendations []agronomy.SuitabilityResult `json:"recommendations"`
}

// PlotYield is a yield prediction scaled to the plot's size.
type PlotYield struct {
	PlotID string `json:"plotId"`
	agronomy.YieldPrediction
	TotalYield float64 `json:"totalYield"` // tons for the whole plot
}

// Analytics summarises recorded yields across plots.
type Analytics struct {
	agronomy.YieldSummary
	PlotsWithYield int `json:"plotsWithYield"`
	TotalPlots     int `json:"totalPlots"`
}
