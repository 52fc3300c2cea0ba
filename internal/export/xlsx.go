package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements SheetWriter by saving an .xlsx workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer that saves to path, replacing any existing file.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write builds a workbook with one worksheet per sheet and saves it.
func (w *XLSXWriter) Write(_ context.Context, data []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9EAD3"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, sheet := range data {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return fmt.Errorf("renaming sheet %s: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", sheet.Name, err)
		}

		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
				return fmt.Errorf("writing %s row %d: %w", sheet.Name, r+1, err)
			}
		}

		if len(sheet.Rows) > 0 && len(sheet.Rows[0]) > 0 {
			last, err := excelize.CoordinatesToCellName(len(sheet.Rows[0]), 1)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet.Name, "A1", last, header); err != nil {
				return fmt.Errorf("styling %s header: %w", sheet.Name, err)
			}
			if err := f.SetPanes(sheet.Name, &excelize.Panes{
				Freeze:      true,
				YSplit:      1,
				TopLeftCell: "A2",
				ActivePane:  "bottomLeft",
			}); err != nil {
				return fmt.Errorf("freezing %s header: %w", sheet.Name, err)
			}
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	return nil
}
