package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/agronomy"
	"github.com/i474232898/farm-insights/internal/farm"
	"github.com/i474232898/farm-insights/internal/observability"
	"github.com/i474232898/farm-insights/internal/pricing"
	"github.com/i474232898/farm-insights/internal/store"
	"github.com/i474232898/farm-insights/internal/weather"
)

type fakeProvider struct {
	name string
	temp float64
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) Fetch(_ context.Context, _ weather.Location) (weather.ProviderReading, error) {
	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    time.Now().UTC(),
		TemperatureC: p.temp,
		HumidityPct:  60,
		Condition:    weather.ConditionClear,
	}, nil
}

func (p fakeProvider) FetchForecast(_ context.Context, _ weather.Location, days int) ([]weather.ProviderReading, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	out := make([]weather.ProviderReading, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, weather.ProviderReading{
			ProviderName: p.name,
			Timestamp:    today.AddDate(0, 0, i),
			TemperatureC: p.temp + float64(i),
			Condition:    weather.ConditionRain,
		})
	}
	return out, nil
}

func newTestApp(t *testing.T, providers ...weather.Provider) *fiber.App {
	t.Helper()

	m := observability.NewMetricsForTesting()
	st := store.NewMemoryStore(10, time.Hour)
	weatherSvc := weather.NewService(st, providers, nil, m, zap.NewNop())

	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(zap.NewNop())})
	RegisterRoutes(app, Deps{
		Farm: farm.NewService(st,
			agronomy.NewScorer(agronomy.DefaultCatalog()),
			agronomy.NewEstimator(agronomy.DefaultBaseYieldTable()),
			weatherSvc, time.Minute, m, zap.NewNop()),
		Prices:            pricing.NewService(st, nil, m, zap.NewNop()),
		Weather:           weatherSvc,
		DefaultYearsAhead: 1,
		WeatherMaxAge:     time.Minute,
	})
	return app
}

// do sends req and decodes a JSON response body into out when out is non-nil.
func do(t *testing.T, app *fiber.App, req *http.Request, out any) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][2]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, f := range files {
		fw, err := w.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

type errorBody struct {
	Error    bool     `json:"error"`
	Message  string   `json:"message"`
	Problems []string `json:"problems"`
}

// TestForecastDaysValidation verifies that the forecast endpoint enforces the
// expected 1-7 range for the `days` query parameter.
func TestForecastDaysValidation(t *testing.T) {
	app := newTestApp(t, fakeProvider{name: "a", temp: 20})

	// Missing days parameter should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?city=Paris&country=FR", nil)
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))

	// Out-of-range days value should also return 400.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?city=Paris&country=FR&days=8", nil)
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))

	var body struct {
		Days     int              `json:"days"`
		Forecast weather.Forecast `json:"forecast"`
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?city=Paris&country=FR&days=3", nil)
	require.Equal(t, http.StatusOK, do(t, app, req, &body))
	assert.Equal(t, 3, body.Days)
	require.Len(t, body.Forecast, 3)
	assert.Equal(t, 22.0, body.Forecast[2].Temperature)
}

func TestCurrentWeather(t *testing.T) {
	app := newTestApp(t, fakeProvider{name: "a", temp: 20}, fakeProvider{name: "b", temp: 23})

	var snap weather.WeatherSnapshot
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?lat=41.5&lon=-93.6", nil)
	require.Equal(t, http.StatusOK, do(t, app, req, &snap))
	assert.Equal(t, 21.5, snap.Temperature)
	assert.Len(t, snap.Providers, 2)

	tests := []struct {
		name  string
		query string
	}{
		{"no location", ""},
		{"lat without lon", "?lat=41.5"},
		{"latitude out of range", "?lat=123&lon=10"},
		{"city without country", "?city=Ames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/current"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, do(t, app, req, &body))
			assert.True(t, body.Error)
		})
	}
}

func TestCurrentWeather_NoProviders(t *testing.T) {
	app := newTestApp(t)

	var body errorBody
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?zip=50010", nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, app, req, &body))
	assert.Contains(t, body.Message, "no weather providers")
}

func TestWeatherHistory(t *testing.T) {
	app := newTestApp(t, fakeProvider{name: "a", temp: 20})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?zip=50010", nil)
	require.Equal(t, http.StatusOK, do(t, app, req, nil))

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	var body struct {
		Snapshots []weather.WeatherSnapshot `json:"snapshots"`
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/history?zip=50010&from="+from+"&to="+to, nil)
	require.Equal(t, http.StatusOK, do(t, app, req, &body))
	assert.Len(t, body.Snapshots, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/history?zip=50010&from="+to+"&to="+from, nil)
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/history?zip=99999&from="+from+"&to="+to, nil)
	assert.Equal(t, http.StatusNotFound, do(t, app, req, nil))
}

func TestRecommendations(t *testing.T) {
	app := newTestApp(t)

	var body struct {
		Recommendations []agronomy.SuitabilityResult `json:"recommendations"`
	}
	reading := agronomy.Reading{Temperature: 25, Humidity: 80, SoilPH: 6.5, Rainfall: 1500}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/recommendations", reading), &body))
	assert.Len(t, body.Recommendations, agronomy.DefaultTopK)

	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/recommendations?top=2", reading), &body))
	assert.Len(t, body.Recommendations, 2)

	var errBody errorBody
	bad := agronomy.Reading{Temperature: 80, Humidity: 150}
	assert.Equal(t, http.StatusBadRequest, do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/recommendations", bad), &errBody))
	assert.ElementsMatch(t, []string{
		"Temperature must be between -10°C and 50°C",
		"Humidity must be between 0% and 100%",
	}, errBody.Problems)
}

func TestYield(t *testing.T) {
	app := newTestApp(t)

	var pred agronomy.YieldPrediction
	body := map[string]any{
		"reading": agronomy.Reading{Temperature: 25, Humidity: 70, SoilPH: 6.5, Rainfall: 1000},
		"crop":    "rice",
	}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/yield", body), &pred))
	assert.Equal(t, 4.5, pred.PredictedYield)
	assert.Equal(t, 1.0, pred.Confidence)

	var errBody errorBody
	delete(body, "crop")
	assert.Equal(t, http.StatusBadRequest, do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/yield", body), &errBody))
	assert.Equal(t, []string{"Crop is required"}, errBody.Problems)
}

func TestPlots(t *testing.T) {
	app := newTestApp(t, fakeProvider{name: "a", temp: 31})

	plot := farm.Plot{
		Name:        "North field",
		Size:        2,
		CurrentCrop: "rice",
		Temperature: 25,
		Humidity:    70,
		PH:          6.5,
		Rainfall:    1000,
		PostalCode:  "50010",
	}

	var created farm.Plot
	require.Equal(t, http.StatusCreated, do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/plots", plot), &created))
	require.NotEmpty(t, created.ID)
	base := "/api/v1/plots/" + created.ID

	var got farm.Plot
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, base, nil), &got))
	assert.Equal(t, "North field", got.Name)

	var list struct {
		Plots []farm.Plot `json:"plots"`
	}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/plots", nil), &list))
	assert.Len(t, list.Plots, 1)

	plot.Size = 3
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodPut, base, plot), &got))
	assert.Equal(t, 3.0, got.Size)

	var y farm.PlotYield
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, base+"/yield", nil), &y))
	assert.Equal(t, 4.5, y.PredictedYield)
	assert.Equal(t, 13.5, y.TotalYield)

	var recs farm.PlotRecommendations
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, base+"/recommendations?live=true&top=3", nil), &recs))
	assert.True(t, recs.LiveWeather)
	assert.Equal(t, 31.0, recs.Reading.Temperature)
	assert.Len(t, recs.Recommendations, 3)

	harvest := map[string]any{"yield": 4.0, "date": "2024-09-01T00:00:00Z"}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodPost, base+"/harvest", harvest), &got))
	require.NotNil(t, got.ActualYield)
	assert.Equal(t, 4.0, *got.ActualYield)

	var an farm.Analytics
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/plots/analytics", nil), &an))
	assert.Equal(t, 1, an.PlotsWithYield)
	assert.Equal(t, 12.0, an.TotalYield)
	assert.Equal(t, "rice", an.BestPerformingCrop)

	assert.Equal(t, http.StatusNoContent, do(t, app, jsonRequest(t, http.MethodDelete, base, nil), nil))
	assert.Equal(t, http.StatusNotFound, do(t, app, jsonRequest(t, http.MethodGet, base, nil), nil))
	assert.Equal(t, http.StatusNotFound, do(t, app, jsonRequest(t, http.MethodGet, base+"/yield", nil), nil))
}

func TestPlots_Invalid(t *testing.T) {
	app := newTestApp(t)

	var body errorBody
	req := jsonRequest(t, http.MethodPost, "/api/v1/plots", farm.Plot{Size: -1, PH: 15})
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, &body))
	assert.Contains(t, body.Problems, "Name is required")
	assert.Contains(t, body.Problems, "pH must be between 0 and 14")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/plots", bytes.NewBufferString("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))
}

func TestPrices_UploadAndPredict(t *testing.T) {
	app := newTestApp(t)

	csv := "year,item_name,price_per_lb_usd,category\n2020,Tomatoes,1.00,vegetable\n2021,Tomatoes,1.10,vegetable\n2022,Tomatoes,1.20,vegetable\n2022,Kale,2.00,vegetable\n"
	var res pricing.ImportResult
	req := multipartRequest(t, "/api/v1/prices/upload", nil, map[string][2]string{"file": {"prices.csv", csv}})
	require.Equal(t, http.StatusOK, do(t, app, req, &res))
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Count)

	var crops struct {
		Crops []string `json:"crops"`
	}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/crops", nil), &crops))
	assert.Equal(t, []string{"kale", "tomatoes"}, crops.Crops)

	var history struct {
		History []pricing.Record `json:"history"`
	}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/Tomatoes", nil), &history))
	assert.Len(t, history.History, 3)

	var pred struct {
		Prediction *pricing.Prediction `json:"prediction"`
	}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/tomatoes/prediction", nil), &pred))
	require.NotNil(t, pred.Prediction)
	assert.Equal(t, 2023, pred.Prediction.PredictionYear)
	assert.Equal(t, 1.3, pred.Prediction.PredictedPricePerPound)
	assert.Equal(t, pricing.TrendIncreasing, pred.Prediction.Trend)

	pred.Prediction = nil
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/kale/prediction", nil), &pred))
	assert.Nil(t, pred.Prediction)

	assert.Equal(t, http.StatusBadRequest, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/tomatoes/prediction?years=0", nil), nil))
	assert.Equal(t, http.StatusBadRequest, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/tomatoes/prediction?years=9223372036854775807", nil), nil))

	assert.Equal(t, http.StatusNoContent, do(t, app, jsonRequest(t, http.MethodDelete, "/api/v1/prices", nil), nil))
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/crops", nil), &crops))
	assert.Empty(t, crops.Crops)
}

func TestPrices_UploadRejected(t *testing.T) {
	app := newTestApp(t)

	req := multipartRequest(t, "/api/v1/prices/upload", nil, map[string][2]string{"file": {"prices.txt", "x"}})
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))

	req = multipartRequest(t, "/api/v1/prices/upload", map[string]string{"note": "no file"}, nil)
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))

	var res pricing.ImportResult
	req = multipartRequest(t, "/api/v1/prices/upload", nil, map[string][2]string{"file": {"prices.csv", "year,name,price\nn/a,corn,1\n"}})
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, &res))
	assert.False(t, res.Success)
	assert.Equal(t, "no valid data found in CSV files", res.Error)
	assert.Len(t, res.Skipped, 1)
}

func TestPrices_ImportUSDA(t *testing.T) {
	app := newTestApp(t)

	veg := "Vegetable,Form,RetailPrice,RetailPriceUnit\nCarrots,Fresh,0.95,per pound\n"
	fruit := "Fruit,Form,RetailPrice,RetailPriceUnit\n\"Apples, Red Delicious\",Fresh,1.25,per pound\n"

	var res pricing.ImportResult
	req := multipartRequest(t, "/api/v1/prices/import/usda", nil, map[string][2]string{
		"vegetables": {"Vegetable-Prices-2022.csv", veg},
		"fruits":     {"Fruit-Prices-2022.csv", fruit},
	})
	require.Equal(t, http.StatusOK, do(t, app, req, &res))
	assert.Equal(t, 2, res.Count)

	var history struct {
		History []pricing.Record `json:"history"`
	}
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/apples", nil), &history))
	require.Len(t, history.History, 1)
	assert.Equal(t, 2022, history.History[0].Year)
	assert.Equal(t, pricing.CategoryFruit, history.History[0].Category)

	req = multipartRequest(t, "/api/v1/prices/import/usda", map[string]string{"year": "2019"}, map[string][2]string{
		"vegetables": {"veg.csv", veg},
	})
	require.Equal(t, http.StatusOK, do(t, app, req, &res))
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/prices/carrots", nil), &history))
	require.Len(t, history.History, 2)
	assert.Equal(t, 2019, history.History[0].Year)

	req = multipartRequest(t, "/api/v1/prices/import/usda", nil, map[string][2]string{"fruits": {"fruit.csv", fruit}})
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))

	req = multipartRequest(t, "/api/v1/prices/import/usda", map[string]string{"year": "2020"}, nil)
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, nil))
}
