// Package sheets reads label rows from the shared Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// DefaultSpreadsheetID is the observatory hardware spreadsheet
const DefaultSpreadsheetID = "1rgqsUifjIKhl6pXm7DFsNiQsGiZKPDvuPoQ98Z6DuKc"

// Client reads value ranges from one spreadsheet
type Client struct {
	spreadsheetID string
	service       *sheetsapi.Service
	logger        *zap.Logger
}

// NewClient creates a client for spreadsheetID using an authorized HTTP
// client. Extra options are passed to the Sheets service.
func NewClient(ctx context.Context, spreadsheetID string, httpClient *http.Client, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient != nil {
		opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}

	return &Client{spreadsheetID: spreadsheetID, service: service, logger: logger}, nil
}

// Rows returns the formatted cell values of rangeName. Like the API itself,
// trailing empty cells and rows are absent.
func (c *Client) Rows(ctx context.Context, rangeName string) ([][]string, error) {
	c.logger.Debug("Fetching sheet range",
		zap.String("spreadsheet", c.spreadsheetID),
		zap.String("range", rangeName))

	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, rangeName).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to read %q: %w", rangeName, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellString(v)
		}
		rows[i] = cells
	}

	c.logger.Debug("Fetched sheet range", zap.String("range", resp.Range), zap.Int("rows", len(rows)))
	return rows, nil
}

func cellString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}
