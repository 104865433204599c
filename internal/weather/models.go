package weather

import (
	"fmt"
	"math"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Location identifies a place to look weather up for: coordinates, a
// postal code, or a city and country, in that order of preference.
type Location struct {
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
}

// Coordinates builds a Location from a latitude/longitude pair.
func Coordinates(lat, lon float64) Location {
	return Location{Lat: &lat, Lon: &lon}
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// IsZero reports whether the location names no place at all.
func (l Location) IsZero() bool {
	return !l.HasCoordinates() && l.PostalCode == "" && l.City == ""
}

// Key returns a canonical string key for indexing this location in stores.
// Coordinates are rounded to four decimals (about 11 m).
func (l Location) Key() string {
	switch {
	case l.HasCoordinates():
		return fmt.Sprintf("%.4f,%.4f", *l.Lat, *l.Lon)
	case l.PostalCode != "":
		return "zip:" + l.PostalCode
	default:
		return l.City + ":" + l.Country
	}
}

// Query renders the location as a free-text "q" parameter, the form
// WeatherAPI.com and OpenWeatherMap accept.
func (l Location) Query() string {
	switch {
	case l.HasCoordinates():
		return fmt.Sprintf("%f,%f", *l.Lat, *l.Lon)
	case l.PostalCode != "":
		return l.PostalCode
	case l.Country != "":
		return l.City + "," + l.Country
	default:
		return l.City
	}
}

// WeatherSnapshot is the normalized, aggregated weather view at a point in time.
type WeatherSnapshot struct {
	Location    Location  `json:"location"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
	Temperature float64   `json:"temperatureC"`
	Humidity    float64   `json:"humidityPercent"`
	WindSpeed   float64   `json:"windSpeed"`
	Pressure    float64   `json:"pressureHpa"`
	PrecipMM    float64   `json:"precipMm"`
	Condition   Condition `json:"condition"`
	Summary     string    `json:"summary,omitempty"`

	// Providers contributing to this snapshot.
	Providers []ProviderContribution `json:"providers,omitempty"`
}

// Rounded returns a copy with temperature and precipitation at one decimal
// and humidity at a whole percent, the precision readings are shown at.
func (s WeatherSnapshot) Rounded() WeatherSnapshot {
	s.Temperature = math.Floor(s.Temperature*10+0.5) / 10
	s.PrecipMM = math.Floor(s.PrecipMM*10+0.5) / 10
	s.Humidity = math.Floor(s.Humidity + 0.5)
	return s
}

// Forecast is a multi-day forecast, one snapshot per day ordered by
// Timestamp ascending.
type Forecast []WeatherSnapshot

// ProviderContribution describes data coming from a single provider used in aggregation.
type ProviderContribution struct {
	ProviderName string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
}
