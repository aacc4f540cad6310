// =============================================================================
// Tax Transaction Manager - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for batch processing:
//   - Directory management
//   - Input file discovery
//   - Input file archival (moving processed files)
//   - Report file naming
//   - Skipped-row error logs and run summaries
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after successful processing,
//     only when archival is enabled
//   - Failed files and dry runs leave the input in place
//   - An archived file never overwrites an earlier archive of the same name
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// now is replaced in tests.
var now = time.Now

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the processor.
type FileManager struct {
	// InputDir is the directory scanned for transaction files.
	InputDir string

	// OutputDir is the directory where reports and logs are written.
	OutputDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/file.csv
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether processed input files are moved.
	ArchiveOnSuccess bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string, archiveOnSuccess bool) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		ArchiveOnSuccess: archiveOnSuccess,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the input and output directories, and the
// archive directory when archival is enabled.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{fm.InputDir, fm.OutputDir}
	if fm.ArchiveOnSuccess {
		dirs = append(dirs, fm.InputArchiveDir)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for transaction files.
//
// PARAMETERS:
//   - pattern: A glob pattern to match files (e.g., "*.txt").
//              If empty, files ending in ".csv" in any letter case match.
//
// RETURNS:
//   - The matching file paths, sorted by name.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	var files []string

	if pattern != "" {
		matches, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}
		files = matches
	} else {
		entries, err := os.ReadDir(fm.InputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}
		for _, entry := range entries {
			if strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
				files = append(files, filepath.Join(fm.InputDir, entry.Name()))
			}
		}
	}

	var result []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			result = append(result, file)
		}
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file, or filePath when archival is disabled.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs a free archive path for a file.
func (fm *FileManager) getArchivePath(filePath string) string {
	dir := fm.InputArchiveDir
	if fm.UseTimestampSubdirs {
		t := now()
		dir = filepath.Join(
			dir,
			fmt.Sprintf("%d", t.Year()),
			fmt.Sprintf("%02d", t.Month()),
			fmt.Sprintf("%02d", t.Day()),
		)
	}

	fileName := filepath.Base(filePath)
	archivePath := filepath.Join(dir, fileName)
	if !FileExists(archivePath) {
		return archivePath
	}

	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	stamp := now().Format("20060102_150405")
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", stem, stamp, i, ext))
		if !FileExists(candidate) {
			return candidate
		}
	}
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {original}  - Original file name (without extension)
//   - extension: The extension to ensure, with or without the leading dot.
//   - params: Additional placeholder values, keyed without braces.
//
// EXAMPLE:
//   format: "{original}_{timestamp}", extension: "xlsx"
//   params: {"original": "sales"}
//   output: "sales_20240115_143022.xlsx"
func GenerateOutputFileName(format, extension string, params map[string]string) string {
	t := now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": t.Format("20060102_150405"),
		"{date}":      t.Format("20060102"),
		"{time}":      t.Format("150405"),
	}

	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if extension != "" {
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		if !strings.HasSuffix(strings.ToLower(result), strings.ToLower(extension)) {
			result += extension
		}
	}

	return result
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single rejected input row.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	RawRow       string
}

// WriteErrorLog writes error entries to a log file in outputDir. The file
// name starts with prefix, usually the input name without extension.
//
// RETURNS:
//   - The path to the error log file, empty when there is nothing to log.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir, prefix string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	generated := now()
	logFileName := fmt.Sprintf("error_log_%s.txt", generated.Format("20060102_150405"))
	if prefix != "" {
		logFileName = prefix + "_" + logFileName
	}
	logPath := filepath.Join(outputDir, logFileName)

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Tax Transaction Manager - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		generated.Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number:     %d\n", entry.RowNumber)
		}
		if entry.RawRow != "" {
			fmt.Fprintf(writer, "  Row:            %s\n", entry.RawRow)
		}

		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalRecords    int
	ValidRecords    int
	InvalidRecords  int
	SkippedRows     int
	DeletedRecords  int
	TotalTax        float64
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFiles []string
	ArchivePath string
	Records     int
	Valid       int
	Invalid     int
	FinalTax    float64
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to a log file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", now().Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Tax Transaction Manager - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:      %d\n"+
		"  Successful:       %d\n"+
		"  Failed:           %d\n"+
		"  Total Records:    %d\n"+
		"  Valid Records:    %d\n"+
		"  Invalid Records:  %d\n"+
		"  Skipped Rows:     %d\n"+
		"  Deleted Records:  %d\n"+
		"  Total Tax:        %.2f\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRecords,
		summary.ValidRecords,
		summary.InvalidRecords,
		summary.SkippedRows,
		summary.DeletedRecords,
		summary.TotalTax)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			for _, out := range pf.OutputFiles {
				fmt.Fprintf(writer, "  Output:       %s\n", out)
			}
			if pf.ArchivePath != "" && pf.ArchivePath != pf.InputFile {
				fmt.Fprintf(writer, "  Archived To:  %s\n", pf.ArchivePath)
			}
			fmt.Fprintf(writer, "  Records:      %d (valid %d, invalid %d)\n", pf.Records, pf.Valid, pf.Invalid)
			fmt.Fprintf(writer, "  Final Tax:    %.2f\n", pf.FinalTax)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
