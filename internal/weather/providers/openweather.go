package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/farm-insights/internal/weather"
)

const openWeatherName = "openweathermap"

// openWeatherConditions maps the "main" group of an OpenWeatherMap condition.
var openWeatherConditions = map[string]weather.Condition{
	"Clear":        weather.ConditionClear,
	"Clouds":       weather.ConditionCloudy,
	"Rain":         weather.ConditionRain,
	"Drizzle":      weather.ConditionRain,
	"Snow":         weather.ConditionSnow,
	"Thunderstorm": weather.ConditionStorm,
	"Mist":         weather.ConditionMist,
	"Fog":          weather.ConditionMist,
	"Haze":         weather.ConditionMist,
}

// OpenWeatherProvider reads current conditions from OpenWeatherMap.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	api     *apiClient
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		api:     newAPIClient("openweather", client),
	}
}

func (p *OpenWeatherProvider) Name() string { return openWeatherName }

type openWeatherResponse struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		LastHour   float64 `json:"1h"`
		LastThreeH float64 `json:"3h"`
	} `json:"rain"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (r openWeatherResponse) reading() weather.ProviderReading {
	out := weather.ProviderReading{
		ProviderName: openWeatherName,
		Timestamp:    time.Now().UTC(),
		TemperatureC: r.Main.Temp,
		HumidityPct:  r.Main.Humidity,
		WindSpeedMS:  r.Wind.Speed,
		PressureHpa:  r.Main.Pressure,
		PrecipMm:     r.Rain.LastHour,
		Condition:    weather.ConditionUnknown,
	}
	if r.Dt > 0 {
		out.Timestamp = time.Unix(r.Dt, 0).UTC()
	}
	if out.PrecipMm == 0 {
		out.PrecipMm = r.Rain.LastThreeH
	}
	if len(r.Weather) > 0 {
		if c, ok := openWeatherConditions[r.Weather[0].Main]; ok {
			out.Condition = c
		}
		out.Summary = r.Weather[0].Description
	}
	return out
}

// openWeatherQuery picks the most precise selector the location carries.
func openWeatherQuery(loc weather.Location) url.Values {
	q := url.Values{}
	if loc.HasCoordinates() {
		q.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', 6, 64))
		return q
	}
	if loc.PostalCode == "" {
		q.Set("q", loc.Query())
		return q
	}
	zip := loc.PostalCode
	if loc.Country != "" {
		zip += "," + loc.Country
	}
	q.Set("zip", zip)
	return q
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	q := openWeatherQuery(loc)
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")

	var body openWeatherResponse
	if err := p.api.getJSON(ctx, p.baseURL, q, &body); err != nil {
		return weather.ProviderReading{}, err
	}
	return body.reading(), nil
}
