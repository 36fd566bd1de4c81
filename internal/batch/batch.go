// Package batch turns spreadsheet rows into label archives, one per row.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"labels-obstech/internal/lbx"
	"labels-obstech/internal/models"
)

// HWIDColumn is the column name holding the hardware identifier
const HWIDColumn = "hwid"

var ErrNoHWIDColumn = errors.New("columns must include " + HWIDColumn)

// RowSource yields a rectangular-ish matrix of cell values for a range
type RowSource interface {
	Rows(ctx context.Context, rangeName string) ([][]string, error)
}

// LabelBuilder writes one label archive and returns its path
type LabelBuilder interface {
	Build(opts lbx.Options) (string, error)
}

// Recorder keeps a history of generated archives
type Recorder interface {
	StartRun(ctx context.Context, source, hardware string) (string, error)
	RecordLabel(ctx context.Context, record models.LabelRecord) error
}

// Spec describes which rows to read and how to turn them into labels
type Spec struct {
	Hardware  string
	Range     string
	Filename  string
	OutputDir string
	// Columns names the field held by each column of the range, in order
	Columns []string
	// Required lists fields that must be non-empty; all columns when nil
	Required []string
	// Source is a short description stored with the run history
	Source string
	// TrimCells strips surrounding whitespace from cells, so blank cells
	// count as empty. Off by default: cells are used as fetched.
	TrimCells bool
}

// TelescopeSpec is the telescope label batch of the shared spreadsheet
func TelescopeSpec() Spec {
	return Spec{
		Hardware: "telescope",
		Range:    "Telescope queues!A3:D",
		Columns:  []string{"hwid", "owner", "queue", "roof"},
	}
}

// Result summarizes a batch
type Result struct {
	RunID     string
	Paths     []string
	Processed int
	Skipped   int
	Duration  time.Duration
}

// Driver runs label batches
type Driver struct {
	Source   RowSource
	Builder  LabelBuilder
	Recorder Recorder // optional
	Logger   *zap.Logger
}

// Run fetches the rows of spec.Range and builds one archive per complete
// row. Rows with an empty required field are skipped. The first build or
// record failure stops the batch.
func (d *Driver) Run(ctx context.Context, spec Spec) (*Result, error) {
	start := time.Now()
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	required := spec.Required
	if required == nil {
		required = spec.Columns
	}

	rows, err := d.Source.Rows(ctx, spec.Range)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows: %w", err)
	}
	logger.Debug("Fetched rows", zap.String("range", spec.Range), zap.Int("rows", len(rows)))

	result := &Result{Paths: make([]string, 0, len(rows))}

	if d.Recorder != nil {
		source := spec.Source
		if source == "" {
			source = spec.Range
		}
		result.RunID, err = d.Recorder.StartRun(ctx, source, spec.Hardware)
		if err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fields := rowFields(spec.Columns, row, spec.TrimCells)
		if missing := firstMissing(fields, required); missing != "" {
			logger.Debug("Skipping incomplete row",
				zap.Int("row", i+1), zap.String("missing", missing))
			result.Skipped++
			continue
		}

		hwid := fields[HWIDColumn]
		delete(fields, HWIDColumn)

		path, err := d.Builder.Build(lbx.Options{
			Hardware:  spec.Hardware,
			HWID:      hwid,
			Filename:  spec.Filename,
			OutputDir: spec.OutputDir,
			Fields:    fields,
		})
		if err != nil {
			return result, fmt.Errorf("failed to build label for %s: %w", hwid, err)
		}
		logger.Info("Made label file", zap.String("path", path), zap.String("hwid", hwid))

		if d.Recorder != nil {
			if err := d.Recorder.RecordLabel(ctx, models.LabelRecord{
				RunID:    result.RunID,
				Hardware: spec.Hardware,
				HWID:     hwid,
				Path:     absPath(path),
			}); err != nil {
				return result, err
			}
		}

		result.Paths = append(result.Paths, path)
		result.Processed++
	}

	result.Duration = time.Since(start)
	return result, nil
}

func validateSpec(spec Spec) error {
	if spec.Hardware == "" {
		return fmt.Errorf("hardware category is required")
	}
	seen := make(map[string]bool, len(spec.Columns))
	for _, col := range spec.Columns {
		if col == "" {
			return fmt.Errorf("column names must not be empty")
		}
		if seen[col] {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = true
	}
	if !seen[HWIDColumn] {
		return ErrNoHWIDColumn
	}
	for _, req := range spec.Required {
		if !seen[req] {
			return fmt.Errorf("required field %q is not a column", req)
		}
	}
	return nil
}

// rowFields maps cells to column names; short rows leave fields empty
func rowFields(columns []string, row []string, trim bool) map[string]string {
	fields := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(row) {
			fields[col] = row[i]
			if trim {
				fields[col] = strings.TrimSpace(row[i])
			}
		} else {
			fields[col] = ""
		}
	}
	return fields
}

func firstMissing(fields map[string]string, required []string) string {
	for _, name := range required {
		if fields[name] == "" {
			return name
		}
	}
	return ""
}

// ParseColumns splits a comma-separated column list
func ParseColumns(s string) []string {
	var cols []string
	for _, part := range strings.Split(s, ",") {
		if col := strings.TrimSpace(part); col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// absPath makes recorded paths independent of the working directory
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
