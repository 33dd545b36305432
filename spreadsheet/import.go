/*
Package spreadsheet reads asset imports from and writes reports to XLSX
workbooks.

PURPOSE:
  The import side turns the first sheet of a workbook into ImportRows,
  one per non-empty data row. It only parses; validation and persistence
  belong to depreciation.Registry.Import.

COLUMNS (A..I):
  Asset Name | Description | Category | Date Placed in Service | Cost |
  Salvage Value | Useful Life (Years) | Property Class | Notes

DATES:
  Accepted as YYYY-MM-DD, MM/DD/YYYY (single-digit month/day allowed), or
  an Excel serial number. Anything else is passed through unchanged so the
  validator reports it with the offending value.

ROW NUMBERS:
  ImportRow.Row is the spreadsheet row as the user sees it: the header is
  row 1, the first data row is row 2.

SEE ALSO:
  - export.go: Template and report workbooks
  - depreciation/registry.go: Import
*/
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/abacus/asset-engine/depreciation"
)

// Column order shared by the import reader and the template writer.
var importHeaders = []string{
	"Asset Name",
	"Description",
	"Category",
	"Date Placed in Service",
	"Cost",
	"Salvage Value",
	"Useful Life (Years)",
	"Property Class",
	"Notes",
}

const (
	colName = iota
	colDescription
	colCategory
	colDate
	colCost
	colSalvage
	colLife
	colPropertyClass
	colNotes
)

var ErrNoSheets = errors.New("No sheets found")

// ReadAssets parses every data row of the workbook's first sheet.
// Rows that cannot be parsed carry their error in ImportRow.Err.
func ReadAssets(r io.Reader) ([]depreciation.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var result []depreciation.ImportRow
	for i, cells := range rows {
		if i == 0 || isEmptyRow(cells) {
			continue
		}
		rowNum := i + 1
		candidate, err := parseRow(cells)
		result = append(result, depreciation.ImportRow{Row: rowNum, Candidate: candidate, Err: err})
	}
	return result, nil
}

func parseRow(cells []string) (depreciation.ImportCandidate, error) {
	var c depreciation.ImportCandidate
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	optional := func(i int) *string {
		if s := cell(i); s != "" {
			return &s
		}
		return nil
	}

	c.Name = cell(colName)
	if c.Name == "" {
		return c, errors.New("Asset Name is required")
	}
	c.Description = optional(colDescription)
	c.Category = optional(colCategory)

	rawDate := cell(colDate)
	if rawDate == "" {
		return c, errors.New("Date Placed in Service is required")
	}
	date, err := normalizeDate(rawDate)
	if err != nil {
		return c, err
	}
	c.DatePlacedInService = date

	cost, err := depreciation.ParseAmount(cell(colCost))
	if err != nil {
		return c, errors.New("Cost is required")
	}
	c.Cost = cost

	if s := cell(colSalvage); s != "" {
		v, err := depreciation.ParseAmount(s)
		if err != nil {
			return c, errors.New("Invalid Salvage Value")
		}
		c.SalvageValue = &v
	}

	life, ok := parseLife(cell(colLife))
	if !ok {
		return c, errors.New("Useful Life is required")
	}
	c.UsefulLifeYears = life

	c.PropertyClass = optional(colPropertyClass)
	c.Notes = optional(colNotes)
	return c, nil
}

// normalizeDate converts the accepted date spellings to YYYY-MM-DD.
func normalizeDate(raw string) (string, error) {
	switch {
	case strings.Contains(raw, "/"):
		parts := strings.Split(raw, "/")
		if len(parts) != 3 {
			return raw, nil
		}
		month, errM := strconv.Atoi(parts[0])
		day, errD := strconv.Atoi(parts[1])
		year, errY := strconv.Atoi(parts[2])
		if errM != nil || errD != nil || errY != nil {
			return raw, nil
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil

	case strings.Contains(raw, "-"):
		return raw, nil
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", errors.New("Invalid date format")
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", errors.New("Invalid date format")
	}
	return depreciation.FormatDate(t), nil
}

// parseLife accepts integers and truncates fractional years.
func parseLife(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return int(d.IntPart()), true
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
