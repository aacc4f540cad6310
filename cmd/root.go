// =============================================================================
// Tax Transaction Manager - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (taxcalc)
//   ├── processCmd (taxcalc process)
//   ├── editCmd    (taxcalc edit)
//   ├── historyCmd (taxcalc history)
//   ├── schemaCmd  (taxcalc schema)
//   └── versionCmd (taxcalc version)
//
// Before any subcommand runs, the root command loads the configuration and
// builds the logger. Both are shared through package variables.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/tax-transaction-manager/internal/config"
	"github.com/ginjaninja78/tax-transaction-manager/internal/history"
	"github.com/ginjaninja78/tax-transaction-manager/internal/logger"
	"github.com/ginjaninja78/tax-transaction-manager/internal/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile is an optional .env file loaded before environment overrides.
var envFile string

// verbose forces debug logging regardless of the configured level.
var verbose bool

// mainConfig and log are set by loadRuntime before a subcommand runs.
var (
	mainConfig *config.MainConfig
	log        *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "taxcalc",
	Short: "Tax Transaction Manager - validate sales transactions and calculate tax",
	Long: `Tax Transaction Manager imports sales transaction files, checks every
record (item code, profit, checksum) and calculates the tax due on the profit
of the valid records.

Key Features:
  - Checksum verification of every imported record
  - Record editing with automatic re-validation
  - Optional removal of zero-profit records
  - XLSX and XML reports with a summary
  - Processing history kept in SQLite

Example Usage:
  taxcalc process --tax-rate 20              # Process every file in the input directory
  taxcalc process --file sales.csv --dry-run # Calculate without writing anything
  taxcalc process --file sales.csv --delete-row 2
  taxcalc edit --file sales.csv --row 2 --quantity 3
  taxcalc history --limit 10`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadRuntime()
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		"",
		"Path to a .env file (default is .env in the working directory, if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadRuntime loads the configuration and builds the logger.
func loadRuntime() error {
	cfg, err := config.LoadMainConfig(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	l, err := logger.New(level)
	if err != nil {
		return err
	}

	mainConfig = cfg
	log = l
	log.Debug("configuration loaded",
		zap.String("config", cfgFile),
		zap.String("input_dir", cfg.InputDir),
		zap.String("output_dir", cfg.OutputDir),
		zap.Strings("export_formats", cfg.ExportFormats),
		zap.Float64("tax_rate", cfg.TaxRate),
	)
	return nil
}

// openRecorder opens the history store when one is configured. The returned
// recorder is nil when history is disabled.
func openRecorder() (processor.Recorder, func(), error) {
	if mainConfig.HistoryDB == "" {
		return nil, func() {}, nil
	}

	store, err := history.Open(mainConfig.HistoryDB)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("opened history database", zap.String("path", store.Path()))

	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close history database", zap.Error(err))
		}
	}, nil
}
