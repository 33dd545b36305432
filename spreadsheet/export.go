package spreadsheet

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/abacus/asset-engine/depreciation"
)

const (
	SheetAssets   = "Assets"
	SheetSchedule = "Depreciation Schedule"
	SheetSummary  = "Annual Summary"
	SheetTemplate = "Assets"

	moneyFormat = "$#,##0.00"
)

type styles struct {
	header int
	money  int
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return styles{}, fmt.Errorf("create header style: %w", err)
	}
	format := moneyFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return styles{}, fmt.Errorf("create money style: %w", err)
	}
	return styles{header: header, money: money}, nil
}

// sheetWriter collects the first error so cell writes read as a flat list.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	st    styles
	err   error
}

func (w *sheetWriter) cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellValue(w.sheet, w.cell(col, row), v); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) money(col, row int, d decimal.Decimal) {
	w.set(col, row, d.InexactFloat64())
	if w.err != nil {
		return
	}
	ref := w.cell(col, row)
	if err := w.f.SetCellStyle(w.sheet, ref, ref, w.st.money); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) headers(names []string) {
	for i, h := range names {
		w.set(i+1, 1, h)
	}
	if w.err != nil {
		return
	}
	last := w.cell(len(names), 1)
	if err := w.f.SetCellStyle(w.sheet, "A1", last, w.st.header); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) widths(widths ...float64) {
	for i, width := range widths {
		if w.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetColWidth(w.sheet, col, col, width); err != nil {
			w.err = err
		}
	}
}

// =============================================================================
// TEMPLATE
// =============================================================================

// WriteTemplate writes an import template: the header row plus one example.
func WriteTemplate(out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SheetTemplate); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	w := &sheetWriter{f: f, sheet: SheetTemplate, st: st}
	w.headers(importHeaders)
	w.set(1, 2, "Example Computer")
	w.set(2, 2, "Office workstation")
	w.set(3, 2, "Equipment")
	w.set(4, 2, "2024-01-15")
	w.set(5, 2, 2000)
	w.set(6, 2, 200)
	w.set(7, 2, 5)
	w.set(8, 2, "5")
	w.set(9, 2, "Main office")
	w.widths(25, 30, 20, 22, 15, 15, 20, 15, 35)
	if w.err != nil {
		return fmt.Errorf("write template: %w", w.err)
	}

	return f.Write(out)
}

// =============================================================================
// REPORT
// =============================================================================

// WriteReport writes the three-sheet depreciation report.
func WriteReport(out io.Writer, rep *depreciation.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetAssets); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := writeAssetsSheet(&sheetWriter{f: f, sheet: SheetAssets, st: st}, rep); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSchedule); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeScheduleSheet(&sheetWriter{f: f, sheet: SheetSchedule, st: st}, rep); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeSummarySheet(&sheetWriter{f: f, sheet: SheetSummary, st: st}, rep); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(out)
}

func writeAssetsSheet(w *sheetWriter, rep *depreciation.Report) error {
	w.headers([]string{
		"Asset Name", "Category", "Cost", "Salvage Value", "Life (Yrs)",
		"Service Date", "Current Book Value", "Status",
	})

	for i, a := range rep.Assets {
		row := i + 2
		category := ""
		if a.CategoryName != nil {
			category = *a.CategoryName
		}
		status := "Active"
		if a.Asset.IsDisposed() {
			status = "Disposed"
		}

		w.set(1, row, a.Asset.Name)
		w.set(2, row, category)
		w.money(3, row, a.Asset.Cost)
		w.money(4, row, a.Asset.SalvageValue)
		w.set(5, row, a.Asset.UsefulLifeYears)
		w.set(6, row, a.Asset.DatePlacedInService)
		w.money(7, row, a.CurrentBookValue)
		w.set(8, row, status)
	}

	w.widths(30, 20, 15, 15, 12, 15, 20, 12)
	if w.err != nil {
		return fmt.Errorf("write %s sheet: %w", w.sheet, w.err)
	}
	return nil
}

func writeScheduleSheet(w *sheetWriter, rep *depreciation.Report) error {
	w.headers([]string{
		"Asset Name", "Year", "Beginning Value", "Depreciation", "Accumulated", "Ending Value",
	})

	row := 2
	for _, a := range rep.Assets {
		for _, e := range a.Schedule {
			w.set(1, row, a.Asset.Name)
			w.set(2, row, e.Year)
			w.money(3, row, e.BeginningBookValue)
			w.money(4, row, e.DepreciationExpense)
			w.money(5, row, e.AccumulatedDepreciation)
			w.money(6, row, e.EndingBookValue)
			row++
		}
	}

	w.widths(30, 10, 18, 15, 15, 15)
	if w.err != nil {
		return fmt.Errorf("write %s sheet: %w", w.sheet, w.err)
	}
	return nil
}

func writeSummarySheet(w *sheetWriter, rep *depreciation.Report) error {
	w.headers([]string{"Year", "Total Depreciation", "Asset Count"})

	for i, s := range rep.AnnualSummary {
		row := i + 2
		w.set(1, row, s.Year)
		w.money(2, row, s.TotalDepreciation)
		w.set(3, row, s.AssetCount)
	}

	w.widths(10, 20, 15)
	if w.err != nil {
		return fmt.Errorf("write %s sheet: %w", w.sheet, w.err)
	}
	return nil
}
