// =============================================================================
// Tax Transaction Manager - Processor Module
// =============================================================================
//
// The processor runs the whole pipeline for one input file on top of the
// transaction engine.
//
// PROCESSING PIPELINE:
//   1. Import the file into a fresh engine
//   2. Calculate profits and validate every record
//   3. Apply requested record edits and deletions
//   4. Delete zero-profit records (optional)
//   5. Calculate the final tax
//   6. Write the configured reports (xlsx, xml)
//   7. Write the error log for skipped rows
//   8. Archive the input file
//   9. Record the run in the history database
//
// Steps 6 to 9 are skipped in dry-run mode. Files are processed one at a
// time; RunAll walks its list sequentially.
//
// =============================================================================

package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ginjaninja78/tax-transaction-manager/internal/config"
	"github.com/ginjaninja78/tax-transaction-manager/internal/csvparser"
	"github.com/ginjaninja78/tax-transaction-manager/internal/engine"
	"github.com/ginjaninja78/tax-transaction-manager/internal/history"
	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/ginjaninja78/tax-transaction-manager/internal/xlsxwriter"
	"github.com/ginjaninja78/tax-transaction-manager/internal/xmlwriter"
	"github.com/ginjaninja78/tax-transaction-manager/pkg/utils"
	"go.uber.org/zap"
)

// ErrRowOutOfRange is returned when an edit or deletion addresses a row that
// was not imported.
var ErrRowOutOfRange = errors.New("row out of range")

// Recorder stores processing runs.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (history.Run, error)
}

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// Options controls a single run.
type Options struct {
	// TaxRate is the percentage applied to the profit of valid records.
	TaxRate float64

	// DeleteZeroProfit drops records whose profit is exactly zero.
	DeleteZeroProfit bool

	// DryRun computes everything but writes nothing.
	DryRun bool

	// Edits are applied after validation, in order. An input file that was
	// edited is never archived.
	Edits []RowEdit

	// Deletes lists 1-based rows, in import order, to remove after the
	// edits are applied. Like an edit, a deletion keeps the input file
	// out of the archive.
	Deletes []int
}

// RowEdit changes one record addressed by its 1-based position in the
// imported file. Nil fields keep the current value.
type RowEdit struct {
	Row           int
	ItemCode      *string
	InternalPrice *string
	Discount      *string
	SalePrice     *string
	Quantity      *string
}

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFiles lists the reports written, in export order.
	OutputFiles []string

	// ErrorLogFile is the skipped-row log, empty when no row was skipped.
	ErrorLogFile string

	// ArchivePath is where the input file ended up. It equals FilePath when
	// archiving is disabled.
	ArchivePath string

	// RunID identifies the history entry, empty without a history store.
	RunID string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Transactions is the final collection in import order.
	Transactions []types.Transaction

	// Summary holds the counts and tax written to the reports.
	Summary types.ReportSummary

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	LinesRead      int
	Edited         int
	Removed        int
	ProcessingTime time.Duration
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor runs the pipeline for input files.
type Processor struct {
	cfg      *config.MainConfig
	loader   engine.Loader
	recorder Recorder
	files    *utils.FileManager
	logger   *zap.Logger
}

// New creates a Processor. recorder may be nil to disable history.
func New(cfg *config.MainConfig, loader engine.Loader, recorder Recorder, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.ArchiveOnSuccess)
	files.UseTimestampSubdirs = cfg.ArchiveDateSubdirs

	return &Processor{
		cfg:      cfg,
		loader:   loader,
		recorder: recorder,
		files:    files,
		logger:   logger,
	}
}

// Files returns the file manager built from the configuration.
func (p *Processor) Files() *utils.FileManager {
	return p.files
}

// Run processes the file at path.
func (p *Processor) Run(ctx context.Context, path string, opts Options) (result Result) {
	startTime := time.Now()
	result = Result{FilePath: path, ArchivePath: path}
	log := p.logger.With(zap.String("file", path))

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	// =========================================================================
	// STEP 1: IMPORT
	// =========================================================================

	eng := engine.New(p.loader, log)
	if err := eng.Import(path); err != nil {
		result.Error = err
		return result
	}

	imported := eng.LastImport()
	result.Stats.LinesRead = imported.LinesRead

	// =========================================================================
	// STEP 2: CALCULATE AND VALIDATE
	// =========================================================================

	eng.CalculateProfits()
	eng.ValidateAll()

	// =========================================================================
	// STEP 3: APPLY EDITS AND DELETIONS
	// =========================================================================

	removed, err := p.applyChanges(eng, opts.Edits, opts.Deletes)
	if err != nil {
		result.Error = err
		return result
	}
	result.Stats.Edited = len(opts.Edits)
	result.Stats.Removed = removed
	changed := len(opts.Edits) > 0 || removed > 0

	// =========================================================================
	// STEP 4: DELETE ZERO PROFIT
	// =========================================================================

	deleted := removed
	if opts.DeleteZeroProfit {
		deleted += eng.DeleteZeroProfit()
	}

	// =========================================================================
	// STEP 5: CALCULATE TAX
	// =========================================================================

	finalTax := eng.CalculateFinalTax(opts.TaxRate)
	counts := eng.Summary()

	result.Transactions = eng.List()
	result.Summary = types.ReportSummary{
		SourceFile: path,
		Total:      counts.Total,
		Valid:      counts.Valid,
		Invalid:    counts.Invalid,
		Skipped:    len(imported.Skipped),
		Deleted:    deleted,
		TaxRate:    opts.TaxRate,
		FinalTax:   finalTax,
	}

	log.Info("calculated tax",
		zap.Int("total", counts.Total),
		zap.Int("valid", counts.Valid),
		zap.Int("invalid", counts.Invalid),
		zap.Int("deleted", deleted),
		zap.Float64("tax_rate", opts.TaxRate),
		zap.Float64("final_tax", finalTax),
	)

	if opts.DryRun {
		log.Info("dry run, nothing written")
		result.Success = true
		return result
	}

	// =========================================================================
	// STEP 6: WRITE REPORTS
	// =========================================================================

	if err := p.files.EnsureDirectories(); err != nil {
		result.Error = err
		return result
	}

	outputs, err := p.writeReports(path, result.Transactions, result.Summary)
	result.OutputFiles = outputs
	if err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 7: WRITE ERROR LOG
	// =========================================================================

	errorLog, err := utils.WriteErrorLog(skippedEntries(path, imported), p.cfg.OutputDir, utils.BaseName(path))
	if err != nil {
		result.Error = err
		return result
	}
	result.ErrorLogFile = errorLog

	// =========================================================================
	// STEP 8: ARCHIVE INPUT
	// =========================================================================
	// A failed move is logged only; the reports are already written.

	if !changed {
		archived, err := p.files.ArchiveInputFile(path)
		if err != nil {
			log.Warn("failed to archive input file", zap.Error(err))
		} else {
			result.ArchivePath = archived
		}
	}

	// =========================================================================
	// STEP 9: RECORD HISTORY
	// =========================================================================

	if p.recorder != nil {
		run, err := p.recorder.Record(ctx, history.Run{
			SourceFile: path,
			Total:      result.Summary.Total,
			Valid:      result.Summary.Valid,
			Invalid:    result.Summary.Invalid,
			Skipped:    result.Summary.Skipped,
			Deleted:    result.Summary.Deleted,
			TaxRate:    result.Summary.TaxRate,
			FinalTax:   result.Summary.FinalTax,
		})
		if err != nil {
			log.Warn("failed to record history", zap.Error(err))
		} else {
			result.RunID = run.ID
		}
	}

	result.Success = true
	return result
}

// RunAll processes paths one after another and summarizes the outcome.
func (p *Processor) RunAll(ctx context.Context, paths []string, opts Options) ([]Result, utils.ProcessingSummary) {
	summary := utils.ProcessingSummary{
		StartTime:  time.Now(),
		TotalFiles: len(paths),
	}

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{FilePath: path, ArchivePath: path, Error: err})
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    path,
				ErrorMessage: err.Error(),
			})
			continue
		}

		result := p.Run(ctx, path, opts)
		results = append(results, result)

		if !result.Success {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    path,
				ErrorMessage: result.Error.Error(),
			})
			continue
		}

		summary.SuccessfulFiles++
		summary.TotalRecords += result.Summary.Total
		summary.ValidRecords += result.Summary.Valid
		summary.InvalidRecords += result.Summary.Invalid
		summary.SkippedRows += result.Summary.Skipped
		summary.DeletedRecords += result.Summary.Deleted
		summary.TotalTax += result.Summary.FinalTax
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   path,
			OutputFiles: result.OutputFiles,
			ArchivePath: result.ArchivePath,
			Records:     result.Summary.Total,
			Valid:       result.Summary.Valid,
			Invalid:     result.Summary.Invalid,
			FinalTax:    result.Summary.FinalTax,
			ProcessTime: result.Stats.ProcessingTime,
		})
	}

	summary.EndTime = time.Now()
	return results, summary
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// applyChanges resolves every row against the imported order before changing
// anything, then applies the edits one by one and removes the deleted rows.
// A row listed twice for deletion is removed once. It returns the number of
// records removed.
func (p *Processor) applyChanges(eng *engine.Engine, edits []RowEdit, deletes []int) (int, error) {
	if len(edits) == 0 && len(deletes) == 0 {
		return 0, nil
	}

	records := eng.List()
	checkRow := func(row int) error {
		if row < 1 || row > len(records) {
			return fmt.Errorf("%w: %d (have %d records)", ErrRowOutOfRange, row, len(records))
		}
		return nil
	}
	for _, edit := range edits {
		if err := checkRow(edit.Row); err != nil {
			return 0, err
		}
	}
	for _, row := range deletes {
		if err := checkRow(row); err != nil {
			return 0, err
		}
	}

	for _, edit := range edits {
		id := records[edit.Row-1].ID
		current, _ := eng.Get(id)
		if err := eng.UpdateFromInput(id, mergeInput(current, edit)); err != nil {
			return 0, fmt.Errorf("row %d: %w", edit.Row, err)
		}
	}

	removed := 0
	seen := make(map[int]bool, len(deletes))
	for _, row := range deletes {
		if seen[row] {
			continue
		}
		seen[row] = true
		if !eng.Delete(records[row-1].ID) {
			return removed, fmt.Errorf("row %d: %w", row, engine.ErrTransactionNotFound)
		}
		removed++
	}
	return removed, nil
}

// mergeInput fills the fields an edit leaves out from the current record.
func mergeInput(current types.Transaction, edit RowEdit) engine.EditInput {
	in := engine.EditInput{
		ItemCode:      current.ItemCode,
		InternalPrice: formatFloat(current.InternalPrice),
		Discount:      formatFloat(current.Discount),
		SalePrice:     formatFloat(current.SalePrice),
		Quantity:      strconv.FormatInt(int64(current.Quantity), 10),
	}
	if edit.ItemCode != nil {
		in.ItemCode = *edit.ItemCode
	}
	if edit.InternalPrice != nil {
		in.InternalPrice = *edit.InternalPrice
	}
	if edit.Discount != nil {
		in.Discount = *edit.Discount
	}
	if edit.SalePrice != nil {
		in.SalePrice = *edit.SalePrice
	}
	if edit.Quantity != nil {
		in.Quantity = *edit.Quantity
	}
	return in
}

// formatFloat keeps every digit so an untouched field parses back unchanged.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeReports writes one report per configured export format.
func (p *Processor) writeReports(path string, transactions []types.Transaction, summary types.ReportSummary) ([]string, error) {
	params := map[string]string{"original": utils.BaseName(path)}

	var outputs []string
	for _, format := range p.cfg.ExportFormats {
		outputPath := filepath.Join(p.cfg.OutputDir, utils.GenerateOutputFileName(p.cfg.OutputNameFormat, format, params))

		var err error
		switch format {
		case config.FormatXLSX:
			err = xlsxwriter.WriteFile(outputPath, transactions, summary)
		case config.FormatXML:
			err = xmlwriter.WriteFile(outputPath, transactions, summary)
		default:
			err = fmt.Errorf("unsupported export format %q", format)
		}
		if err != nil {
			return outputs, fmt.Errorf("failed to write %s report: %w", format, err)
		}

		p.logger.Info("wrote report", zap.String("format", format), zap.String("path", outputPath))
		outputs = append(outputs, outputPath)
	}
	return outputs, nil
}

// skippedEntries converts the rows rejected by the importer to log entries.
func skippedEntries(path string, imported *csvparser.ParseResult) []utils.ErrorLogEntry {
	if len(imported.Skipped) == 0 {
		return nil
	}

	logged := time.Now()
	entries := make([]utils.ErrorLogEntry, 0, len(imported.Skipped))
	for _, row := range imported.Skipped {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    logged,
			FileName:     filepath.Base(path),
			ErrorType:    "malformed_row",
			ErrorMessage: row.Reason,
			RowNumber:    row.Line,
			RawRow:       row.Raw,
		})
	}
	return entries
}
