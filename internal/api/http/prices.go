package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-insights/internal/pricing"
)

func (h *handlers) crops(c *fiber.Ctx) error {
	crops, err := h.Prices.Crops(c.UserContext())
	if err != nil {
		return err
	}
	if crops == nil {
		crops = []string{}
	}
	return c.JSON(fiber.Map{"crops": crops})
}

func (h *handlers) priceHistory(c *fiber.Ctx) error {
	crop := pricing.NormalizeCropName(c.Params("crop"))
	history, err := h.Prices.History(c.UserContext(), crop)
	if err != nil {
		return err
	}
	if history == nil {
		history = []pricing.Record{}
	}
	return c.JSON(fiber.Map{"crop": crop, "history": history})
}

// pricePrediction answers 200 with a null prediction when the crop lacks
// history; that is a normal "need more data" outcome, not an error.
func (h *handlers) pricePrediction(c *fiber.Ctx) error {
	crop := pricing.NormalizeCropName(c.Params("crop"))
	years := c.QueryInt("years", h.DefaultYearsAhead)

	p, err := h.Prices.Predict(c.UserContext(), crop, years)
	if errors.Is(err, pricing.ErrInsufficientData) {
		return c.JSON(fiber.Map{
			"crop":       crop,
			"prediction": nil,
			"message":    "not enough price history to forecast",
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"crop": crop, "prediction": p})
}

// upload imports a generic price table from a .csv or .xlsx file.
func (h *handlers) upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}

	var importer func(r io.Reader) pricing.ImportResult
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".csv":
		importer = func(r io.Reader) pricing.ImportResult { return h.Prices.ImportCSV(c.UserContext(), r) }
	case ".xlsx":
		importer = func(r io.Reader) pricing.ImportResult { return h.Prices.ImportWorkbook(c.UserContext(), r) }
	default:
		return fiber.NewError(fiber.StatusBadRequest, "file must be .csv or .xlsx")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	return importResponse(c, importer(f))
}

// importUSDA imports the USDA vegetable and fruit retail price files. The
// year comes from the "year" field or, failing that, from a file name.
func (h *handlers) importUSDA(c *fiber.Ctx) error {
	vegHeader, _ := c.FormFile("vegetables")
	fruitHeader, _ := c.FormFile("fruits")
	if vegHeader == nil && fruitHeader == nil {
		return fiber.NewError(fiber.StatusBadRequest, "at least one of \"vegetables\" or \"fruits\" is required")
	}

	year, err := usdaYear(c.FormValue("year"), vegHeader, fruitHeader)
	if err != nil {
		return err
	}

	vegetables, closeVeg, err := openOptional(vegHeader)
	if err != nil {
		return err
	}
	defer closeVeg()
	fruits, closeFruit, err := openOptional(fruitHeader)
	if err != nil {
		return err
	}
	defer closeFruit()

	return importResponse(c, h.Prices.ImportUSDA(c.UserContext(), vegetables, fruits, year))
}

func (h *handlers) clearPrices(c *fiber.Ctx) error {
	if err := h.Prices.Clear(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func usdaYear(field string, files ...*multipart.FileHeader) (int, error) {
	if field != "" {
		y, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || y < 1900 || y > 2100 {
			return 0, fiber.NewError(fiber.StatusBadRequest, "year must be a four-digit year")
		}
		return y, nil
	}
	for _, fh := range files {
		if fh == nil {
			continue
		}
		if y, ok := pricing.YearFromFilename(fh.Filename); ok {
			return y, nil
		}
	}
	return 0, fiber.NewError(fiber.StatusBadRequest, "year is required when file names carry none")
}

// openOptional opens fh, returning a nil reader when fh is nil.
func openOptional(fh *multipart.FileHeader) (io.Reader, func(), error) {
	if fh == nil {
		return nil, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func importResponse(c *fiber.Ctx, res pricing.ImportResult) error {
	if !res.Success {
		return c.Status(fiber.StatusBadRequest).JSON(res)
	}
	return c.JSON(res)
}
