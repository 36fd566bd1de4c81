package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"labels-obstech/internal/db"
	"labels-obstech/internal/models"
)

func newHistoryCmd() *cobra.Command {
	var filter db.LabelFilter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously generated label files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DBPath == "" {
				return fmt.Errorf("history is disabled (no database configured)")
			}

			database, err := db.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			records, err := database.ListLabels(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No label files recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GENERATED\tHARDWARE\tHWID\tPATH\tRUN")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.GeneratedAt.Local().Format(time.DateTime), r.Hardware, r.HWID, r.Path, shortID(r.RunID))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Hardware, "hardware", "", "only show this hardware category")
	cmd.Flags().StringVar(&filter.HWID, "hwid", "", "only show this hardware ID")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of entries (0 for all)")
	return cmd
}

// recordSingle stores a label made outside a batch as its own run
func recordSingle(ctx context.Context, hardware, hwid, path string) error {
	if cfg.DBPath == "" {
		return nil
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	runID, err := database.StartRun(ctx, "cli", hardware)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return database.RecordLabel(ctx, models.LabelRecord{
		RunID:    runID,
		Hardware: hardware,
		HWID:     hwid,
		Path:     path,
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
