package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/farm-insights/internal/weather"
)

// WeatherAPIProvider implements weather.ForecastProvider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	api     *apiClient
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		api:     newAPIClient("weatherapi", client),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICondition struct {
	Text string `json:"text"`
}

func (p *WeatherAPIProvider) get(ctx context.Context, endpoint string, values url.Values, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}
	values.Set("key", p.apiKey)

	return p.api.getJSON(ctx, p.baseURL+endpoint, values, out)
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	var payload struct {
		Location struct {
			LocaltimeEpoch int64 `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			LastUpdatedEpoch int64               `json:"last_updated_epoch"`
			TempC            float64             `json:"temp_c"`
			Humidity         float64             `json:"humidity"`
			WindKph          float64             `json:"wind_kph"`
			PressureMb       float64             `json:"pressure_mb"`
			PrecipMm         float64             `json:"precip_mm"`
			Condition        weatherAPICondition `json:"condition"`
		} `json:"current"`
	}

	// "q" accepts "lat,lon", a postal code or "city,country".
	if err := p.get(ctx, "/current.json", url.Values{"q": {loc.Query()}}, &payload); err != nil {
		return weather.ProviderReading{}, err
	}

	epoch := payload.Current.LastUpdatedEpoch
	if epoch == 0 {
		epoch = payload.Location.LocaltimeEpoch
	}
	ts := time.Now().UTC()
	if epoch > 0 {
		ts = time.Unix(epoch, 0).UTC()
	}

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.Current.TempC,
		HumidityPct:  payload.Current.Humidity,
		WindSpeedMS:  payload.Current.WindKph / 3.6,
		PressureHpa:  payload.Current.PressureMb,
		PrecipMm:     payload.Current.PrecipMm,
		Condition:    mapWeatherAPICondition(payload.Current.Condition.Text),
		Summary:      payload.Current.Condition.Text,
	}, nil
}

// FetchForecast returns one reading per day from forecast.json.
func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, loc weather.Location, days int) ([]weather.ProviderReading, error) {
	var payload struct {
		Forecast struct {
			Days []struct {
				Date string `json:"date"`
				Day  struct {
					AvgTempC      float64             `json:"avgtemp_c"`
					TotalPrecipMm float64             `json:"totalprecip_mm"`
					AvgHumidity   float64             `json:"avghumidity"`
					MaxWindKph    float64             `json:"maxwind_kph"`
					Condition     weatherAPICondition `json:"condition"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	values := url.Values{"q": {loc.Query()}, "days": {strconv.Itoa(days)}}
	if err := p.get(ctx, "/forecast.json", values, &payload); err != nil {
		return nil, err
	}

	out := make([]weather.ProviderReading, 0, len(payload.Forecast.Days))
	for _, d := range payload.Forecast.Days {
		ts, err := time.Parse(time.DateOnly, d.Date)
		if err != nil {
			return nil, fmt.Errorf("weatherapi: parse forecast date %q: %w", d.Date, err)
		}
		out = append(out, weather.ProviderReading{
			ProviderName: p.name,
			Timestamp:    ts,
			TemperatureC: d.Day.AvgTempC,
			HumidityPct:  d.Day.AvgHumidity,
			WindSpeedMS:  d.Day.MaxWindKph / 3.6,
			PrecipMm:     d.Day.TotalPrecipMm,
			Condition:    mapWeatherAPICondition(d.Day.Condition.Text),
			Summary:      d.Day.Condition.Text,
		})
	}
	return out, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case contains(text, "thunder") || contains(text, "storm"):
		return weather.ConditionStorm
	case contains(text, "snow") || contains(text, "sleet") || contains(text, "blizzard"):
		return weather.ConditionSnow
	case contains(text, "rain") || contains(text, "shower") || contains(text, "drizzle"):
		return weather.ConditionRain
	case contains(text, "mist") || contains(text, "fog"):
		return weather.ConditionMist
	case contains(text, "cloud") || contains(text, "overcast"):
		return weather.ConditionCloudy
	case contains(text, "sunny") || contains(text, "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
