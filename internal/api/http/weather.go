package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-insights/internal/store"
	"github.com/i474232898/farm-insights/internal/weather"
)

func (h *handlers) currentWeather(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}

	snapshot, err := h.Weather.Current(c.UserContext(), loc, h.WeatherMaxAge)
	if err != nil {
		return err
	}
	return c.JSON(snapshot)
}

func (h *handlers) weatherHistory(c *fiber.Ctx) error {
	var req historyQuery
	if err := req.bind(c); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return invalid(err)
	}

	snapshots, err := h.Weather.GetRange(c.UserContext(), req.Location, req.From, req.To)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"location":  req.Location,
		"from":      req.From,
		"to":        req.To,
		"snapshots": snapshots,
	})
}

func (h *handlers) weatherForecast(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}

	q := forecastQuery{Days: c.QueryInt("days")}
	if err := validate.Struct(q); err != nil {
		return invalid(err)
	}

	forecast, err := h.Weather.GetForecast(c.UserContext(), loc, q.Days)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"location": loc,
		"days":     q.Days,
		"forecast": forecast,
	})
}

type forecastQuery struct {
	Days int `validate:"required,gte=1,lte=7"`
}

// locationQuery holds query parameters for identifying a location:
// lat and lon, a zip code, or a city with its country.
type locationQuery struct {
	Lat     string `validate:"required_with=Lon,omitempty,latitude"`
	Lon     string `validate:"required_with=Lat,omitempty,longitude"`
	Zip     string `validate:"omitempty,max=16"`
	City    string
	Country string `validate:"required_with=City"`
}

func (l locationQuery) toLocation() (weather.Location, error) {
	if l.Lat != "" {
		lat, err := strconv.ParseFloat(l.Lat, 64)
		if err != nil {
			return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
		}
		lon, err := strconv.ParseFloat(l.Lon, 64)
		if err != nil {
			return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "lon must be a number")
		}
		return weather.Coordinates(lat, lon), nil
	}
	return weather.Location{
		City:       l.City,
		Country:    l.Country,
		PostalCode: l.Zip,
	}, nil
}

func parseLocationQuery(c *fiber.Ctx) (weather.Location, error) {
	q := locationQuery{
		Lat:     c.Query("lat"),
		Lon:     c.Query("lon"),
		Zip:     c.Query("zip"),
		City:    c.Query("city"),
		Country: c.Query("country"),
	}
	if q.Lat == "" && q.Lon == "" && q.Zip == "" && q.City == "" {
		return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "provide lat and lon, zip, or city and country")
	}
	if err := validate.Struct(q); err != nil {
		return weather.Location{}, invalid(err)
	}
	return q.toLocation()
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location weather.Location `validate:"-"`
	From     time.Time        `validate:"required"`
	To       time.Time        `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid time format; use RFC3339 or unix seconds")
}
