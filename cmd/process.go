// =============================================================================
// Tax Transaction Manager - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the full pipeline on
// the transaction files of the input directory, or on a single file.
//
// COMMAND USAGE:
//   taxcalc process [flags]
//
// FLAGS:
//   --file               : Process only this file
//   --pattern            : Glob for files in the input directory (default *.csv)
//   --tax-rate           : Tax rate in percent (default from config)
//   --delete-zero-profit : Drop zero-profit records before the tax is calculated
//   --delete-row         : Remove a record by its 1-based row (needs --file)
//   --dry-run            : Calculate without writing reports, logs or history
//
// PROCESSING PIPELINE:
//   1. Discover input files
//   2. Process each file in turn (see internal/processor)
//   3. Print the per-file outcome and totals
//   4. Write the processing summary log
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/tax-transaction-manager/internal/csvparser"
	"github.com/ginjaninja78/tax-transaction-manager/internal/processor"
	"github.com/ginjaninja78/tax-transaction-manager/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	processFile       string
	processPattern    string
	processTaxRate    float64
	processDryRun     bool
	processDeleteZero bool
	processDeleteRows []int
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate transaction files and calculate the tax due",
	Long: `The process command imports each transaction file, validates every record
and calculates the tax on the profit of the valid records.

Files are processed one after another. An error in one file does not stop
the others.

On successful processing:
  - The configured reports (xlsx, xml) are placed in the output directory
  - Rows that could not be read are listed in an error log
  - The input file is archived when archive_on_success is set, unless
    records were removed with --delete-row
  - The run is recorded in the history database when history_db is set`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processFile, "file", "", "Process only this file")
	processCmd.Flags().StringVar(&processPattern, "pattern", "", "Glob for files in the input directory (default *.csv)")
	processCmd.Flags().Float64Var(&processTaxRate, "tax-rate", 0, "Tax rate in percent (default from config)")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "Calculate without writing reports, logs or history")
	processCmd.Flags().BoolVar(&processDeleteZero, "delete-zero-profit", false, "Delete zero-profit records before calculating tax")
	processCmd.Flags().IntSliceVar(&processDeleteRows, "delete-row", nil, "Remove the record at this 1-based row before calculating tax (repeatable, needs --file)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if len(processDeleteRows) > 0 && processFile == "" {
		return fmt.Errorf("--delete-row needs --file: rows are numbered per file")
	}

	opts := processor.Options{
		TaxRate:          mainConfig.TaxRate,
		DeleteZeroProfit: mainConfig.DeleteZeroProfit,
		DryRun:           processDryRun,
		Deletes:          processDeleteRows,
	}
	if cmd.Flags().Changed("tax-rate") {
		opts.TaxRate = processTaxRate
	}
	if cmd.Flags().Changed("delete-zero-profit") {
		opts.DeleteZeroProfit = processDeleteZero
	}

	var recorder processor.Recorder
	if !opts.DryRun {
		r, closeRecorder, err := openRecorder()
		if err != nil {
			return err
		}
		defer closeRecorder()
		recorder = r
	}

	p := processor.New(mainConfig, csvparser.NewFileLoader(), recorder, log)

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if processFile != "" {
		inputFiles = []string{processFile}
	} else {
		files, err := p.Files().DiscoverInputFiles(processPattern)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		inputFiles = files
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No transaction files found in the input directory.")
		return nil
	}

	log.Info("processing files", zap.Int("count", len(inputFiles)), zap.Bool("dry_run", opts.DryRun))

	// =========================================================================
	// STEP 2: PROCESS FILES
	// =========================================================================

	results, summary := p.RunAll(cmd.Context(), inputFiles, opts)

	// =========================================================================
	// STEP 3: PRINT RESULTS
	// =========================================================================

	for _, result := range results {
		name := filepath.Base(result.FilePath)
		if !result.Success {
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, result.Error)
			continue
		}
		fmt.Fprintf(out, "  ✓ %s: %d valid, %d invalid, tax %.2f", name, result.Summary.Valid, result.Summary.Invalid, result.Summary.FinalTax)
		if len(result.OutputFiles) > 0 {
			fmt.Fprintf(out, " -> %s", strings.Join(result.OutputFiles, ", "))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Records:         %d\n", summary.TotalRecords)
	fmt.Fprintf(out, "Valid:           %d\n", summary.ValidRecords)
	fmt.Fprintf(out, "Invalid:         %d\n", summary.InvalidRecords)
	fmt.Fprintf(out, "Skipped rows:    %d\n", summary.SkippedRows)
	fmt.Fprintf(out, "Deleted:         %d\n", summary.DeletedRecords)
	fmt.Fprintf(out, "Tax rate:        %.2f%%\n", opts.TaxRate)
	fmt.Fprintf(out, "Final Tax:       %.2f\n", summary.TotalTax)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	// =========================================================================
	// STEP 4: WRITE SUMMARY LOG
	// =========================================================================

	if !opts.DryRun {
		if err := p.Files().EnsureDirectories(); err != nil {
			return err
		}
		summaryPath, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir)
		if err != nil {
			log.Warn("failed to write summary log", zap.Error(err))
		} else {
			fmt.Fprintf(out, "Summary log:     %s\n", summaryPath)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}
