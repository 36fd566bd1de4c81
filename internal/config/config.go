package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"labels-obstech/internal/sheets"
)

// EnvPrefix prefixes environment overrides, e.g. LABELS_OBSTECH_SHEET_ID
const EnvPrefix = "LABELS_OBSTECH"

// Config holds the resolved settings
type Config struct {
	SheetID         string
	TokenFile       string
	CredentialsFile string
	TemplatesDirs   []string
	OutputDir       string
	DBPath          string
	Verbose         bool
}

// DefaultDir is the per-user configuration directory
func DefaultDir() string {
	return filepath.Join("~", ".config", "labels_obstech")
}

// New returns a viper instance with defaults and environment overrides set
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("sheet_id", sheets.DefaultSpreadsheetID)
	v.SetDefault("token_file", filepath.Join(DefaultDir(), "token.json"))
	v.SetDefault("credentials_file", filepath.Join(DefaultDir(), "credentials.json"))
	v.SetDefault("templates_dir", []string{})
	v.SetDefault("output_dir", ".")
	v.SetDefault("db", filepath.Join(DefaultDir(), "history.db"))
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, and returns the resolved settings.
// An explicit configFile must exist; the default one is optional.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(ExpandHome(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ExpandHome(DefaultDir()))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		SheetID:         v.GetString("sheet_id"),
		TokenFile:       ExpandHome(v.GetString("token_file")),
		CredentialsFile: ExpandHome(v.GetString("credentials_file")),
		OutputDir:       ExpandHome(v.GetString("output_dir")),
		DBPath:          ExpandHome(v.GetString("db")),
		Verbose:         v.GetBool("verbose"),
	}
	for _, dir := range v.GetStringSlice("templates_dir") {
		cfg.TemplatesDirs = append(cfg.TemplatesDirs, ExpandHome(dir))
	}

	if cfg.SheetID == "" {
		return nil, fmt.Errorf("sheet_id must not be empty")
	}
	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
