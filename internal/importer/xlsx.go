package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads rows from a local workbook, typically a download of the
// shared spreadsheet.
type XLSXSource struct {
	Path string
}

// Rows returns the cells of rangeName. Without a sheet in the range the
// workbook's first sheet is used.
func (s XLSXSource) Rows(ctx context.Context, rangeName string) ([][]string, error) {
	r, err := ParseRange(rangeName)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets found in Excel file")
		}
		sheet = sheets[0]
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", sheet, err)
	}

	return r.Clip(rows), nil
}

// WriteXLSX writes rows to a new workbook with a single sheet, placed at
// the position of r so that reading r back returns the same rows.
func WriteXLSX(rows [][]string, r Range, outputPath string) error {
	sheet := r.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}

	if err := ensureDir(outputPath); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	// Excel caps sheet names at 31 characters
	if runes := []rune(sheet); len(runes) > 31 {
		sheet = string(runes[:31])
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(r.StartCol, r.StartRow+i)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func ensureDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
