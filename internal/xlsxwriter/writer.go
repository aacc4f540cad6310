// =============================================================================
// Tax Transaction Manager - XLSX Report Writer
// =============================================================================
//
// This module is responsible for writing the Excel report of a processed
// transaction file.
//
// WORKBOOK STRUCTURE:
//
//   Sheet "Transactions" (one row per record, collection order)
//   | Bill Number | Item Code | Internal Price | Discount | Sale Price | Quantity | Raw Total | Checksum | Profit | Valid |
//   |-------------|-----------|----------------|----------|------------|----------|-----------|----------|--------|-------|
//   | B1          | ITM1      | 10.00          | 0.00     | 20.00      | 1        | 20.00     | 24       | 10.00  | Yes   |
//
//   Invalid records are highlighted with a light red fill.
//
//   Sheet "Summary"
//   | Source File | sales.csv |
//   | Total       | 2         |
//   | Valid       | 1         |
//   | Invalid     | 1         |
//   | Skipped     | 0         |
//   | Deleted     | 0         |
//   | Tax Rate    | 20.00     |
//   | Final Tax   | 2.00      |
//
// Numeric cells hold the unrounded values with a two-decimal display format.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Sheet names.
const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"
)

// InvalidFillColor is the background of invalid record rows.
const InvalidFillColor = "FFCCCC"

// Columns of the transactions sheet, in order.
var Columns = []string{
	"Bill Number",
	"Item Code",
	"Internal Price",
	"Discount",
	"Sale Price",
	"Quantity",
	"Raw Total",
	"Checksum",
	"Profit",
	"Valid",
}

// amountColumns are the 1-based columns holding money values.
var amountColumns = map[int]bool{3: true, 4: true, 5: true, 7: true, 9: true}

// builtInTwoDecimals is the excelize built-in number format "0.00".
const builtInTwoDecimals = 2

// =============================================================================
// WRITER FUNCTIONS
// =============================================================================

// styles holds the style IDs registered in a workbook.
type styles struct {
	header        int
	amount        int
	invalid       int
	invalidAmount int
}

// WriteFile writes the Excel report for transactions and summary to path.
//
// RETURNS:
//   - An error if the workbook cannot be built or saved.
func WriteFile(path string, transactions []types.Transaction, summary types.ReportSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := Build(f, transactions, summary); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

// Build fills an empty workbook with the report sheets.
func Build(f *excelize.File, transactions []types.Transaction, summary types.ReportSummary) error {
	st, err := registerStyles(f)
	if err != nil {
		return err
	}

	// A new workbook starts with a default sheet; reuse it.
	if err := f.SetSheetName(f.GetSheetName(0), TransactionsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := writeTransactions(f, transactions, st); err != nil {
		return err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	if err := writeSummary(f, summary, st); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return nil
}

// registerStyles adds the report styles to the workbook.
func registerStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return st, fmt.Errorf("failed to create header style: %w", err)
	}

	st.amount, err = f.NewStyle(&excelize.Style{
		NumFmt: builtInTwoDecimals,
	})
	if err != nil {
		return st, fmt.Errorf("failed to create amount style: %w", err)
	}

	invalidFill := excelize.Fill{
		Type:    "pattern",
		Pattern: 1,
		Color:   []string{InvalidFillColor},
	}

	st.invalid, err = f.NewStyle(&excelize.Style{
		Fill: invalidFill,
	})
	if err != nil {
		return st, fmt.Errorf("failed to create invalid row style: %w", err)
	}

	st.invalidAmount, err = f.NewStyle(&excelize.Style{
		NumFmt: builtInTwoDecimals,
		Fill:   invalidFill,
	})
	if err != nil {
		return st, fmt.Errorf("failed to create invalid amount style: %w", err)
	}

	return st, nil
}

// writeTransactions writes the header and one row per record.
func writeTransactions(f *excelize.File, transactions []types.Transaction, st styles) error {
	header := make([]interface{}, len(Columns))
	for i, column := range Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(TransactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	lastColumn, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(TransactionsSheet, "A1", lastColumn+"1", st.header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, t := range transactions {
		rowNumber := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNumber)
		if err != nil {
			return err
		}

		row := []interface{}{
			t.BillNumber,
			t.ItemCode,
			t.InternalPrice,
			t.Discount,
			t.SalePrice,
			t.Quantity,
			t.RawTotal,
			t.CurrentChecksum,
			t.Profit,
			yesNo(t.Valid),
		}
		if err := f.SetSheetRow(TransactionsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rowNumber, err)
		}

		if err := styleRow(f, rowNumber, t.Valid, st); err != nil {
			return fmt.Errorf("failed to style row %d: %w", rowNumber, err)
		}
	}

	if err := f.SetColWidth(TransactionsSheet, "A", lastColumn, 15); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	return nil
}

// styleRow applies the two-decimal format to the amount columns and the
// highlight fill to every cell of an invalid record.
func styleRow(f *excelize.File, rowNumber int, valid bool, st styles) error {
	for col := 1; col <= len(Columns); col++ {
		style := 0
		switch {
		case amountColumns[col] && valid:
			style = st.amount
		case amountColumns[col]:
			style = st.invalidAmount
		case !valid:
			style = st.invalid
		default:
			continue
		}

		cell, err := excelize.CoordinatesToCellName(col, rowNumber)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(TransactionsSheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// writeSummary writes one label/value row per total.
func writeSummary(f *excelize.File, summary types.ReportSummary, st styles) error {
	rows := [][]interface{}{
		{"Source File", sourceName(summary.SourceFile)},
		{"Total", summary.Total},
		{"Valid", summary.Valid},
		{"Invalid", summary.Invalid},
		{"Skipped", summary.Skipped},
		{"Deleted", summary.Deleted},
		{"Tax Rate", summary.TaxRate},
		{"Final Tax", summary.FinalTax},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), st.header); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("B%d", len(rows)-1), fmt.Sprintf("B%d", len(rows)), st.amount); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}

	return f.SetColWidth(SummarySheet, "A", "B", 15)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func sourceName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
