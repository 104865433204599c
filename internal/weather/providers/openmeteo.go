package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/farm-insights/internal/weather"
)

var errNeedsCoordinates = errors.New("openmeteo requires latitude and longitude")

// openMeteoTime is the minute-precision local time Open-Meteo reports.
const openMeteoTime = "2006-01-02T15:04"

// OpenMeteoProvider implements weather.ForecastProvider for Open-Meteo. It
// needs no API key but only understands coordinates.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	api     *apiClient
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		api:     newAPIClient("openmeteo", client),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) get(ctx context.Context, loc weather.Location, values url.Values, out any) error {
	if !loc.HasCoordinates() {
		return errNeedsCoordinates
	}
	values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
	values.Set("wind_speed_unit", "ms")
	values.Set("timezone", "UTC")

	return p.api.getJSON(ctx, p.baseURL, values, out)
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	var payload struct {
		Current struct {
			Time          string  `json:"time"`
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			Precipitation float64 `json:"precipitation"`
			Pressure      float64 `json:"surface_pressure"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			WeatherCode   int     `json:"weather_code"`
		} `json:"current"`
	}

	values := url.Values{"current": {"temperature_2m,relative_humidity_2m,precipitation,surface_pressure,wind_speed_10m,weather_code"}}
	if err := p.get(ctx, loc, values, &payload); err != nil {
		return weather.ProviderReading{}, err
	}

	ts, err := time.Parse(openMeteoTime, payload.Current.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts.UTC(),
		TemperatureC: payload.Current.Temperature,
		HumidityPct:  payload.Current.Humidity,
		WindSpeedMS:  payload.Current.WindSpeed,
		PressureHpa:  payload.Current.Pressure,
		PrecipMm:     payload.Current.Precipitation,
		Condition:    mapOpenMeteoCondition(payload.Current.WeatherCode),
	}, nil
}

// FetchForecast returns one reading per day from the daily aggregates.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc weather.Location, days int) ([]weather.ProviderReading, error) {
	var payload struct {
		Daily struct {
			Time          []string  `json:"time"`
			Temperature   []float64 `json:"temperature_2m_mean"`
			Humidity      []float64 `json:"relative_humidity_2m_mean"`
			Precipitation []float64 `json:"precipitation_sum"`
			WindSpeed     []float64 `json:"wind_speed_10m_max"`
			WeatherCode   []int     `json:"weather_code"`
		} `json:"daily"`
	}

	values := url.Values{
		"daily":         {"temperature_2m_mean,relative_humidity_2m_mean,precipitation_sum,wind_speed_10m_max,weather_code"},
		"forecast_days": {strconv.Itoa(days)},
	}
	if err := p.get(ctx, loc, values, &payload); err != nil {
		return nil, err
	}

	d := payload.Daily
	n := len(d.Time)
	if len(d.Temperature) < n || len(d.Humidity) < n || len(d.Precipitation) < n || len(d.WindSpeed) < n || len(d.WeatherCode) < n {
		return nil, fmt.Errorf("openmeteo: daily series have mismatched lengths")
	}

	out := make([]weather.ProviderReading, 0, n)
	for i, day := range d.Time {
		ts, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return nil, fmt.Errorf("openmeteo: parse forecast date %q: %w", day, err)
		}
		out = append(out, weather.ProviderReading{
			ProviderName: p.name,
			Timestamp:    ts,
			TemperatureC: d.Temperature[i],
			HumidityPct:  d.Humidity[i],
			WindSpeedMS:  d.WindSpeed[i],
			PrecipMm:     d.Precipitation[i],
			Condition:    mapOpenMeteoCondition(d.WeatherCode[i]),
		})
	}
	return out, nil
}

// mapOpenMeteoCondition maps WMO weather interpretation codes.
func mapOpenMeteoCondition(code int) weather.Condition {
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
