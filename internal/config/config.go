// =============================================================================
// Tax Transaction Manager - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults
//   2. Main config file (config.yaml)
//   3. Environment variables, optionally loaded from a .env file
//
// ENVIRONMENT VARIABLES:
//   TAXCALC_INPUT_DIR   overrides input_dir
//   TAXCALC_OUTPUT_DIR  overrides output_dir
//   TAXCALC_TAX_RATE    overrides tax_rate
//   TAXCALC_LOG_LEVEL   overrides log_level
//   TAXCALC_HISTORY_DB  overrides history_db
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported export formats.
const (
	FormatXLSX = "xlsx"
	FormatXML  = "xml"
)

// Environment variable names.
const (
	EnvInputDir  = "TAXCALC_INPUT_DIR"
	EnvOutputDir = "TAXCALC_OUTPUT_DIR"
	EnvTaxRate   = "TAXCALC_TAX_RATE"
	EnvLogLevel  = "TAXCALC_LOG_LEVEL"
	EnvHistoryDB = "TAXCALC_HISTORY_DB"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory scanned for transaction files.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is the directory where reports and logs are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives input files after successful processing
	// when ArchiveOnSuccess is set.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the base name of generated reports. The
	// extension is added per export format.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {original}  - Input file name without extension
	// Default: "{original}_{timestamp}"
	OutputNameFormat string `yaml:"output_name_format"`

	// ExportFormats lists the reports to write: "xlsx", "xml".
	// Default: both
	ExportFormats []string `yaml:"export_formats"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// TaxRate is the percentage applied to the profit of valid records.
	// Negative and above-100 rates are accepted as given.
	// Default: 0
	TaxRate float64 `yaml:"tax_rate"`

	// DeleteZeroProfit removes records with a profit of exactly zero before
	// the tax is calculated.
	// Default: false
	DeleteZeroProfit bool `yaml:"delete_zero_profit"`

	// ArchiveOnSuccess moves input files to InputArchiveDir once processed.
	// Default: false
	ArchiveOnSuccess bool `yaml:"archive_on_success"`

	// ArchiveDateSubdirs files archived inputs under YYYY/MM/DD
	// subdirectories of InputArchiveDir.
	// Default: false
	ArchiveDateSubdirs bool `yaml:"archive_date_subdirs"`

	// HistoryDB is the SQLite file recording processing runs.
	// Empty disables history.
	HistoryDB string `yaml:"history_db"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file
//     is not an error; defaults are used instead.
//   - envPath: Optional .env file. Without it a .env file in the working
//     directory is loaded if present.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if a file cannot be parsed or a value is invalid.
func LoadMainConfig(configPath string, envPath ...string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Run on defaults.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := applyEnvOverrides(&config); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides replaces config values with those set in the environment.
func applyEnvOverrides(config *MainConfig) error {
	if v := os.Getenv(EnvInputDir); v != "" {
		config.InputDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		config.OutputDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv(EnvHistoryDB); v != "" {
		config.HistoryDB = v
	}
	if v := os.Getenv(EnvTaxRate); v != "" {
		rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvTaxRate, v)
		}
		config.TaxRate = rate
	}
	return nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{original}_{timestamp}"
	}
	if len(config.ExportFormats) == 0 {
		config.ExportFormats = []string{FormatXLSX, FormatXML}
	}
	for i, format := range config.ExportFormats {
		config.ExportFormats[i] = strings.ToLower(strings.TrimSpace(format))
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if math.IsNaN(config.TaxRate) || math.IsInf(config.TaxRate, 0) {
		return fmt.Errorf("tax_rate must be a finite number")
	}

	for _, format := range config.ExportFormats {
		if format != FormatXLSX && format != FormatXML {
			return fmt.Errorf("unsupported export format %q", format)
		}
	}

	return nil
}
