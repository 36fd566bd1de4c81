package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource reads rows from a CSV export. The export already is the range,
// so the range name is ignored.
type CSVSource struct {
	Path string
}

// Rows returns every record of the CSV file
func (s CSVSource) Rows(ctx context.Context, _ string) ([][]string, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Allow variable number of fields per record
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, trimTrailingEmpty(record))
	}

	return rows, nil
}

// WriteCSV writes rows to a CSV file
func WriteCSV(rows [][]string, outputPath string) error {
	if err := ensureDir(outputPath); err != nil {
		return err
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	for _, row := range rows {
		// Ensure row has at least one column
		if len(row) == 0 {
			row = []string{""}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV file: %w", err)
	}
	return nil
}
