package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/agronomy"
	"github.com/i474232898/farm-insights/internal/farm"
	"github.com/i474232898/farm-insights/internal/observability"
	"github.com/i474232898/farm-insights/internal/pricing"
	"github.com/i474232898/farm-insights/internal/store"
	"github.com/i474232898/farm-insights/internal/weather"
)

var validate = validator.New()

// Deps are the services behind the API.
type Deps struct {
	Farm    *farm.Service
	Prices  *pricing.Service
	Weather *weather.Service

	// DefaultYearsAhead is the forecast horizon when ?years= is absent.
	DefaultYearsAhead int
	// WeatherMaxAge is how old a stored snapshot may be when served as
	// current conditions.
	WeatherMaxAge time.Duration

	Logger *zap.Logger
}

type handlers struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	deps.Logger = observability.OrNop(deps.Logger)
	if deps.DefaultYearsAhead < 1 {
		deps.DefaultYearsAhead = 1
	}
	h := &handlers{Deps: deps}

	v1 := app.Group("/api/v1")

	v1.Post("/recommendations", h.recommend)
	v1.Post("/yield", h.estimateYield)

	plots := v1.Group("/plots")
	plots.Post("/", h.createPlot)
	plots.Get("/", h.listPlots)
	plots.Get("/analytics", h.analytics)
	plots.Get("/:id", h.getPlot)
	plots.Put("/:id", h.updatePlot)
	plots.Delete("/:id", h.deletePlot)
	plots.Post("/:id/harvest", h.recordHarvest)
	plots.Get("/:id/recommendations", h.plotRecommendations)
	plots.Get("/:id/yield", h.plotYield)

	prices := v1.Group("/prices")
	prices.Get("/crops", h.crops)
	prices.Post("/upload", h.upload)
	prices.Post("/import/usda", h.importUSDA)
	prices.Delete("/", h.clearPrices)
	prices.Get("/:crop", h.priceHistory)
	prices.Get("/:crop/prediction", h.pricePrediction)

	v1.Get("/weather/current", h.currentWeather)
	v1.Get("/weather/history", h.weatherHistory)
	v1.Get("/weather/forecast", h.weatherForecast)
}

// NewErrorHandler returns the central Fiber error handler. Domain errors map
// to status codes here so handlers can return them unchanged.
func NewErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	logger = observability.OrNop(logger)

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		body := fiber.Map{"error": true, "message": err.Error()}

		var (
			fe   *fiber.Error
			verr *agronomy.ValidationError
		)
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.As(err, &verr):
			code = fiber.StatusBadRequest
			body["message"] = "invalid input"
			body["problems"] = verr.Problems
		case errors.Is(err, store.ErrNotFound), errors.Is(err, agronomy.ErrUnknownCrop):
			code = fiber.StatusNotFound
		case errors.Is(err, pricing.ErrInvalidHorizon), errors.Is(err, farm.ErrNoCrop):
			code = fiber.StatusBadRequest
		case errors.Is(err, weather.ErrNoReadings), errors.Is(err, weather.ErrNoForecast):
			code = fiber.StatusBadGateway
		case errors.Is(err, weather.ErrNoProviders):
			code = fiber.StatusServiceUnavailable
		}

		if code >= fiber.StatusInternalServerError && fe == nil {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			if code == fiber.StatusInternalServerError {
				body["message"] = "internal server error"
			}
		}
		return c.Status(code).JSON(body)
	}
}

// invalid converts validator errors on request DTOs into a ValidationError
// so they reach clients as a problem list.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() == "" {
			problems = append(problems, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return &agronomy.ValidationError{Problems: problems}
}

func badBody(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
}
