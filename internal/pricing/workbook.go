package pricing

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned for a workbook without sheets or rows.
var ErrEmptyWorkbook = errors.New("workbook has no rows")

// ParseWorkbook reads the first sheet of an .xlsx upload and normalises it
// with the same column rules as ParseCSV.
func ParseWorkbook(r io.Reader) (ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ParseResult{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ParseResult{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return ParseResult{}, ErrEmptyWorkbook
	}
	return normalizeTable(rows[0], rows[1:]), nil
}
