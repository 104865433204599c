package pricing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/i474232898/farm-insights/internal/common"
)

// SkipReason says why a row did not become a Record.
type SkipReason string

const (
	SkipMissingColumns SkipReason = "missing required column"
	SkipShortRow       SkipReason = "row has too few fields"
	SkipBadYear        SkipReason = "year is not numeric"
	SkipBadPrice       SkipReason = "price is not numeric"
	SkipNegativePrice  SkipReason = "price is negative"
	SkipEmptyName      SkipReason = "crop name is empty"
)

// RowOutcome is the result of normalising one data row. Exactly one of
// Record and Skip is set.
type RowOutcome struct {
	Line   int
	Record *Record
	Skip   *SkipReason
}

// Skipped is a row that was dropped, with the reason.
type Skipped struct {
	Line   int        `json:"line"`
	Reason SkipReason `json:"reason"`
}

// ParseResult collects the accepted records and the dropped rows of a file.
type ParseResult struct {
	Records []Record  `json:"records"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

func (p *ParseResult) add(o RowOutcome) {
	if o.Record != nil {
		p.Records = append(p.Records, *o.Record)
		return
	}
	if o.Skip != nil {
		p.Skipped = append(p.Skipped, Skipped{Line: o.Line, Reason: *o.Skip})
	}
}

func accepted(line int, r Record) RowOutcome { return RowOutcome{Line: line, Record: &r} }

func skipped(line int, reason SkipReason) RowOutcome { return RowOutcome{Line: line, Skip: &reason} }

// ErrMissingHeader is returned for an input with no header row.
var ErrMissingHeader = errors.New("csv has no header row")

// genericColumns maps the generic layout's columns to their positions.
// Optional columns are -1 when absent.
type genericColumns struct {
	year, name, price, category, notes int
}

func matchColumns(header []string) genericColumns {
	return genericColumns{
		year:     common.IndexOfAny(header, "year"),
		name:     common.IndexOfAny(header, "item", "name"),
		price:    common.IndexOfAny(header, "price"),
		category: common.IndexOfAny(header, "category"),
		notes:    common.IndexOfAny(header, "note"),
	}
}

func (c genericColumns) complete() bool {
	return c.year >= 0 && c.name >= 0 && c.price >= 0
}

func (c genericColumns) width() int {
	return max(c.year, c.name, c.price) + 1
}

// normalizeRow turns one generic-layout row into a record or a skip.
func (c genericColumns) normalizeRow(line int, fields []string) RowOutcome {
	if !c.complete() {
		return skipped(line, SkipMissingColumns)
	}
	if len(fields) < c.width() {
		return skipped(line, SkipShortRow)
	}

	year, ok := common.LeadingInt(fields[c.year])
	if !ok {
		return skipped(line, SkipBadYear)
	}
	price, ok := common.LeadingFloat(fields[c.price])
	if !ok {
		return skipped(line, SkipBadPrice)
	}
	if price < 0 {
		return skipped(line, SkipNegativePrice)
	}
	name := NormalizeCropName(fields[c.name])
	if name == "" {
		return skipped(line, SkipEmptyName)
	}

	rec := Record{
		Year:          year,
		CropName:      name,
		Category:      CategoryVegetable,
		PricePerPound: price,
	}
	if c.category >= 0 && c.category < len(fields) {
		rec.Category = ParseCategory(fields[c.category])
	}
	if c.notes >= 0 && c.notes < len(fields) {
		rec.Notes = strings.TrimSpace(fields[c.notes])
	}
	return accepted(line, rec)
}

// normalizeTable applies the generic layout to a header plus data rows.
// Line numbers are 1-based and count the header as line 1.
func normalizeTable(header []string, rows [][]string) ParseResult {
	cols := matchColumns(header)
	var res ParseResult
	for i, row := range rows {
		if blank(row) {
			continue
		}
		res.add(cols.normalizeRow(i+2, row))
	}
	return res
}

// ParseCSV reads a generic price table: a header row naming the columns,
// matched case-insensitively by substring ("year", "item"/"name", "price",
// "category", "note"), followed by data rows. Malformed rows are skipped,
// never fatal; only an unreadable or empty input returns an error.
func ParseCSV(r io.Reader) (ParseResult, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, ErrMissingHeader
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("read csv header: %w", err)
	}

	cols := matchColumns(header)
	var res ParseResult
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		res.add(cols.normalizeRow(line, fields))
	}
	return res, nil
}

// newReader returns a csv reader tolerant of ragged rows and stray quotes,
// which hand-exported spreadsheets are full of.
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
