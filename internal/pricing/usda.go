package pricing

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/i474232898/farm-insights/internal/common"
)

// USDA retail price layout: name, form, retail price, price unit. Extra
// trailing columns (yield factors, cup equivalents) are ignored.
const (
	usdaName = iota
	usdaForm
	usdaPrice
	usdaUnit
	usdaMinFields
)

const (
	formFresh = "Fresh"
	formJuice = "Juice"
	unitPound = "per pound"
)

var juiceDescriptors = regexp.MustCompile(`\s+(ready-to-drink|frozen concentrate)`)

// ParseUSDA reads one USDA ERS retail price file. Every record gets the
// caller's category and year since the files carry neither. The first line
// is a header and is never treated as data.
func ParseUSDA(r io.Reader, category Category, year int) (ParseResult, error) {
	cr := newReader(r)

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return ParseResult{}, nil
		}
		return ParseResult{}, fmt.Errorf("read usda header: %w", err)
	}

	var res ParseResult
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read usda csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		res.add(normalizeUSDARow(line, fields, category, year))
	}
	return res, nil
}

func normalizeUSDARow(line int, fields []string, category Category, year int) RowOutcome {
	if len(fields) < usdaMinFields {
		return skipped(line, SkipShortRow)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	// Blank form or unit cells mean the row lacks a column.
	if fields[usdaForm] == "" || fields[usdaUnit] == "" {
		return skipped(line, SkipShortRow)
	}

	price, ok := common.LeadingFloat(fields[usdaPrice])
	if !ok {
		return skipped(line, SkipBadPrice)
	}
	if price < 0 {
		return skipped(line, SkipNegativePrice)
	}

	form := fields[usdaForm]
	name := USDACropName(fields[usdaName], form)
	if name == "" {
		return skipped(line, SkipEmptyName)
	}

	rec := Record{
		Year:          year,
		CropName:      name,
		Category:      category,
		PricePerPound: price,
	}
	if form != formFresh {
		rec.Notes = form
		if unit := fields[usdaUnit]; unit != unitPound {
			rec.Notes += " - " + unit
		}
	}
	return accepted(line, rec)
}

// USDACropName reduces a USDA item name to its base crop: "Apples, Red
// Delicious" and "Apples (Granny Smith)" both become "apples". Juice items
// also lose their packaging descriptor.
func USDACropName(raw, form string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name, _, _ = strings.Cut(name, ",")
	name, _, _ = strings.Cut(name, "(")
	name = strings.TrimSpace(name)
	if form == formJuice {
		name = strings.TrimSpace(juiceDescriptors.ReplaceAllString(name, ""))
	}
	return name
}
