package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"labels-obstech/internal/batch"
	"labels-obstech/internal/config"
	"labels-obstech/internal/db"
	"labels-obstech/internal/lbx"
)

var (
	configFile string
	v          = config.New()
	cfg        *config.Config
	logger     = zap.NewNop()

	// Build information (injected by GoReleaser)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "labels-obstech",
		Short:         "Generate Brother label files for observatory hardware",
		Long:          "Generates Brother label-printer archives (.lbx) for observatory hardware from the shared hardware spreadsheet.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(v, configFile)
			if err != nil {
				return err
			}

			zc := zap.NewProductionConfig()
			zc.Encoding = "console"
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			zc.DisableStacktrace = true
			if cfg.Verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ~/.config/labels_obstech/config.yaml)")
	flags.String("sheet-id", "", "spreadsheet ID")
	flags.String("token-file", "", "OAuth token cache file")
	flags.String("credentials-file", "", "OAuth client credentials file")
	flags.StringSlice("templates", nil, "directory holding label templates, one subdirectory per hardware category (repeatable)")
	flags.StringP("output-dir", "o", "", "directory for generated label files")
	flags.String("db", "", "history database path (empty string disables history)")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	// Flags take precedence over environment, config file and defaults
	for key, name := range map[string]string{
		"sheet_id":         "sheet-id",
		"token_file":       "token-file",
		"credentials_file": "credentials-file",
		"templates_dir":    "templates",
		"output_dir":       "output-dir",
		"db":               "db",
		"verbose":          "verbose",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newLabelCmd(),
		newBatchCmd(),
		newFetchCmd(),
		newHistoryCmd(),
		newTemplatesCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newLabelCmd() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "label <hardware> <hwid> [key=value...]",
		Short: "Generate one label file",
		Long:  "Generate a single label archive from the template of <hardware>. Extra key=value pairs fill the template's placeholders.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[2:])
			if err != nil {
				return err
			}

			builder := lbx.NewBuilder(lbx.NewResolver(cfg.TemplatesDirs...))
			path, err := builder.Build(lbx.Options{
				Hardware:  args[0],
				HWID:      args[1],
				Filename:  filename,
				OutputDir: cfg.OutputDir,
				Fields:    fields,
			})
			if err != nil {
				return err
			}
			logger.Info("Made label file", zap.String("path", path), zap.String("hwid", args[1]))

			if err := recordSingle(cmd.Context(), args[0], args[1], path); err != nil {
				return err
			}

			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&filename, "filename", lbx.DefaultFilename, "label file name pattern")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		from     string
		rng      string
		hardware string
		columns  string
		required string
		filename string
		trim     bool
	)
	defaults := batch.TelescopeSpec()

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate label files for every complete spreadsheet row",
		Long:  "Reads a range of the hardware spreadsheet and generates one label file per row. Rows with an empty required field are skipped. Rows are read from Google Sheets unless --from names a local .xlsx or .csv export.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, sourceName, err := openSource(ctx, from)
			if err != nil {
				return err
			}

			spec := batch.Spec{
				Hardware:  hardware,
				Range:     rng,
				Filename:  filename,
				OutputDir: cfg.OutputDir,
				Columns:   batch.ParseColumns(columns),
				Source:    sourceName,
				TrimCells: trim,
			}
			if required != "" {
				spec.Required = batch.ParseColumns(required)
			}

			driver := &batch.Driver{
				Source:  src,
				Builder: lbx.NewBuilder(lbx.NewResolver(cfg.TemplatesDirs...)),
				Logger:  logger,
			}

			if cfg.DBPath != "" {
				database, err := db.New(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer database.Close()
				driver.Recorder = database
			}

			result, err := driver.Run(ctx, spec)
			if result != nil {
				for _, path := range result.Paths {
					fmt.Println(path)
				}
			}
			if err != nil {
				return err
			}

			printBatchSummary(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "read rows from a local .xlsx or .csv file instead of Google Sheets")
	cmd.Flags().StringVar(&rng, "range", defaults.Range, "spreadsheet range in A1 notation")
	cmd.Flags().StringVar(&hardware, "hardware", defaults.Hardware, "hardware category (template directory)")
	cmd.Flags().StringVar(&columns, "columns", strings.Join(defaults.Columns, ","), "field name of each column in the range")
	cmd.Flags().StringVar(&required, "required", "", "fields that must be non-empty (default: all columns)")
	cmd.Flags().StringVar(&filename, "filename", lbx.DefaultFilename, "label file name pattern")
	cmd.Flags().BoolVar(&trim, "trim", false, "strip surrounding whitespace from cells (blank cells then count as empty)")
	return cmd
}

func printBatchSummary(result *batch.Result) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("BATCH SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Label files:   %d\n", result.Processed)
	fmt.Printf("  Rows skipped:  %d\n", result.Skipped)
	fmt.Printf("  Duration:      %v\n", result.Duration.Round(time.Millisecond))
	if result.RunID != "" {
		fmt.Printf("  Run ID:        %s\n", result.RunID)
	}
	fmt.Println(strings.Repeat("=", 60))
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available hardware categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := lbx.NewResolver(cfg.TemplatesDirs...).Categories()
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Println(c)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("labels-obstech version %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built at: %s\n", date)
		},
	}
}

// parseFields turns key=value arguments into template fields
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", arg)
		}
		fields[key] = value
	}
	return fields, nil
}
