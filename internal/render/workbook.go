package render

import (
	"bytes"
	"fmt"
	"image/png"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

// Workbook sheet names, in tab order.
const (
	SheetPreview         = "Preview"
	SheetExtremes        = "Extremes"
	SheetClassified      = "Classified"
	SheetCounts          = "Counts"
	SheetByLocation      = "ByLocation"
	SheetByLocationMonth = "ByLocationMonth"
	SheetCorrelation     = "Correlation"
)

// WorkbookSheets lists every sheet Workbook writes.
var WorkbookSheets = []string{
	SheetPreview,
	SheetExtremes,
	SheetClassified,
	SheetCounts,
	SheetByLocation,
	SheetByLocationMonth,
	SheetCorrelation,
}

// Workbook exports every report table as an .xlsx document. When heatmap
// holds a PNG it is placed beside the correlation table; bytes that do not
// decode as PNG are left out and the tables are still written.
func Workbook(rep *report.Report, heatmap []byte) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory file

	if err := f.SetSheetName("Sheet1", SheetPreview); err != nil {
		return nil, err
	}
	for _, name := range WorkbookSheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	w := sheetWriter{f: f}
	w.records(SheetPreview, rep.Columns, rep.Preview)
	w.extremes(rep.Extremes)
	w.records(SheetClassified, rep.ClassifiedColumns(), rep.ClassifiedPreview)
	w.categories(rep.Categories)
	w.countTable(SheetByLocation, rep.ByLocation)
	w.countTable(SheetByLocationMonth, rep.ByLocationMonth)
	w.correlation(rep.Correlation)
	if w.err != nil {
		return nil, fmt.Errorf("workbook: %w", w.err)
	}

	if isPNG(heatmap) {
		anchor, _ := excelize.CoordinatesToCellName(len(rep.Correlation.Columns)+3, 1)
		if err := f.AddPictureFromBytes(SheetCorrelation, anchor, &excelize.Picture{
			Extension: ".png",
			File:      heatmap,
			Format:    &excelize.GraphicOptions{AltText: HeatmapTitle, ScaleX: 0.6, ScaleY: 0.6},
		}); err != nil {
			return nil, fmt.Errorf("workbook heatmap: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("workbook encode: %w", err)
	}
	return buf.Bytes(), nil
}

func isPNG(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	_, err := png.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

// sheetWriter keeps the first error so the table writers stay linear.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, r int, values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) header(sheet string, cols []string) {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	w.row(sheet, 1, values)
	if w.err == nil && len(cols) > 0 {
		last, _ := excelize.ColumnNumberToName(len(cols))
		w.err = w.f.SetColWidth(sheet, "A", last, 18)
	}
}

func (w *sheetWriter) records(sheet string, cols []string, recs []domain.Record) {
	w.header(sheet, cols)
	for i := range recs {
		values := make([]any, len(cols))
		for j, col := range cols {
			if v := recs[i].Value(col); v != nil {
				values[j] = *v
				continue
			}
			values[j] = recs[i].Cell(col)
		}
		w.row(sheet, i+2, values)
	}
}

func (w *sheetWriter) extremes(ext []report.Extreme) {
	w.header(SheetExtremes, []string{"Attribute", "Maximum", "Minimum"})
	for i, e := range ext {
		values := []any{e.Column, "", ""}
		if e.Valid {
			values[1], values[2] = e.Max, e.Min
		}
		w.row(SheetExtremes, i+2, values)
	}
}

func (w *sheetWriter) categories(counts []report.CategoryCount) {
	w.header(SheetCounts, []string{domain.ColCropYield, "count"})
	for i, c := range counts {
		w.row(SheetCounts, i+2, []any{string(c.Category), c.Count})
	}
}

func (w *sheetWriter) countTable(sheet string, t report.CountTable) {
	cols := []string{domain.ColLocation}
	withMonth := sheet == SheetByLocationMonth
	if withMonth {
		cols = append(cols, domain.ColYearMonth)
	}
	for _, c := range t.Categories {
		cols = append(cols, string(c))
	}
	w.header(sheet, cols)

	for i, r := range t.Rows {
		values := []any{r.Location}
		if withMonth {
			month := ""
			if r.Month != nil {
				month = r.Month.String()
			}
			values = append(values, month)
		}
		for _, n := range r.Counts {
			values = append(values, n)
		}
		w.row(sheet, i+2, values)
	}
}

func (w *sheetWriter) correlation(c report.Correlation) {
	w.header(SheetCorrelation, append([]string{""}, c.Columns...))
	for i, col := range c.Columns {
		values := []any{col}
		for j := range c.Columns {
			v := c.At(i, j)
			if math.IsNaN(v) {
				values = append(values, "")
				continue
			}
			values = append(values, math.Round(v*100)/100)
		}
		w.row(SheetCorrelation, i+2, values)
	}
	w.row(SheetCorrelation, len(c.Columns)+3, []any{"rows used", c.Rows, "rows dropped", c.Dropped})
}
