package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labels-obstech/internal/batch"
	"labels-obstech/internal/importer"
	"labels-obstech/internal/sheets"
)

// openSource picks the row source: a local export when from is set,
// Google Sheets otherwise. The returned name is stored with the run.
func openSource(ctx context.Context, from string) (batch.RowSource, string, error) {
	if from != "" {
		switch strings.ToLower(filepath.Ext(from)) {
		case ".xlsx", ".xlsm":
			return importer.XLSXSource{Path: from}, "xlsx:" + from, nil
		case ".csv":
			return importer.CSVSource{Path: from}, "csv:" + from, nil
		default:
			return nil, "", fmt.Errorf("unsupported input file %s (expected .xlsx or .csv)", from)
		}
	}

	client, err := openSheets(ctx)
	if err != nil {
		return nil, "", err
	}
	return client, "sheets:" + cfg.SheetID, nil
}

func openSheets(ctx context.Context) (*sheets.Client, error) {
	logger.Debug("Authorizing spreadsheet access",
		zap.String("token_file", cfg.TokenFile),
		zap.String("credentials_file", cfg.CredentialsFile))

	auth := &sheets.Authorizer{
		TokenFile:       cfg.TokenFile,
		CredentialsFile: cfg.CredentialsFile,
		Logger:          logger,
	}
	httpClient, err := auth.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize spreadsheet access: %w", err)
	}
	return sheets.NewClient(ctx, cfg.SheetID, httpClient, logger)
}

func newFetchCmd() *cobra.Command {
	var rng string

	cmd := &cobra.Command{
		Use:   "fetch <output.csv|output.xlsx>",
		Short: "Download a spreadsheet range to a local file",
		Long:  "Downloads a range of the hardware spreadsheet and saves it as CSV or XLSX, for use with 'batch --from'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputPath := args[0]
			ext := strings.ToLower(filepath.Ext(outputPath))
			if ext != ".csv" && ext != ".xlsx" {
				return fmt.Errorf("unsupported output file %s (expected .csv or .xlsx)", outputPath)
			}

			r, err := importer.ParseRange(rng)
			if err != nil {
				return err
			}

			client, err := openSheets(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := client.Rows(cmd.Context(), rng)
			if err != nil {
				return err
			}

			if ext == ".csv" {
				err = importer.WriteCSV(rows, outputPath)
			} else {
				err = importer.WriteXLSX(rows, r, outputPath)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Saved %d row(s) from %s to %s\n", len(rows), rng, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&rng, "range", batch.TelescopeSpec().Range, "spreadsheet range in A1 notation")
	return cmd
}
