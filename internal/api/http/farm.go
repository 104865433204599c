package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-insights/internal/agronomy"
	"github.com/i474232898/farm-insights/internal/farm"
)

type yieldRequest struct {
	Reading agronomy.Reading `json:"reading"`
	Crop    string           `json:"crop" validate:"required"`
}

type harvestRequest struct {
	Yield *float64   `json:"yield" validate:"required,gte=0"` // tons per acre
	Date  *time.Time `json:"date"`
}

func (h *handlers) recommend(c *fiber.Ctx) error {
	var r agronomy.Reading
	if err := c.BodyParser(&r); err != nil {
		return badBody(err)
	}

	recs, err := h.Farm.Recommend(r, c.QueryInt("top", agronomy.DefaultTopK))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recommendations": recs})
}

func (h *handlers) estimateYield(c *fiber.Ctx) error {
	var req yieldRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}
	if err := validate.Struct(req); err != nil {
		return invalid(err)
	}

	pred, err := h.Farm.EstimateYield(req.Reading, req.Crop)
	if err != nil {
		return err
	}
	return c.JSON(pred)
}

func (h *handlers) createPlot(c *fiber.Ctx) error {
	var p farm.Plot
	if err := c.BodyParser(&p); err != nil {
		return badBody(err)
	}

	created, err := h.Farm.CreatePlot(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) listPlots(c *fiber.Ctx) error {
	plots, err := h.Farm.ListPlots(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"plots": plots})
}

func (h *handlers) getPlot(c *fiber.Ctx) error {
	p, err := h.Farm.GetPlot(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *handlers) updatePlot(c *fiber.Ctx) error {
	var p farm.Plot
	if err := c.BodyParser(&p); err != nil {
		return badBody(err)
	}

	updated, err := h.Farm.UpdatePlot(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (h *handlers) deletePlot(c *fiber.Ctx) error {
	if err := h.Farm.DeletePlot(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) recordHarvest(c *fiber.Ctx) error {
	var req harvestRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}
	if err := validate.Struct(req); err != nil {
		return invalid(err)
	}

	on := time.Now().UTC()
	if req.Date != nil {
		on = req.Date.UTC()
	}
	p, err := h.Farm.RecordHarvest(c.UserContext(), c.Params("id"), *req.Yield, on)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *handlers) plotRecommendations(c *fiber.Ctx) error {
	recs, err := h.Farm.RecommendForPlot(
		c.UserContext(),
		c.Params("id"),
		c.QueryBool("live", false),
		c.QueryInt("top", agronomy.DefaultTopK),
	)
	if err != nil {
		return err
	}
	return c.JSON(recs)
}

func (h *handlers) plotYield(c *fiber.Ctx) error {
	y, err := h.Farm.PredictPlotYield(c.UserContext(), c.Params("id"), c.Query("crop"))
	if err != nil {
		return err
	}
	return c.JSON(y)
}

func (h *handlers) analytics(c *fiber.Ctx) error {
	a, err := h.Farm.Analytics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(a)
}
