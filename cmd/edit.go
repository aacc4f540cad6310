// =============================================================================
// Tax Transaction Manager - Edit Command
// =============================================================================
//
// This file defines the 'edit' command. It imports one file, changes one
// record and re-validates it, then reports the recalculated tax.
//
// COMMAND USAGE:
//   taxcalc edit --file sales.csv --row 2 [field flags]
//
// Only the field flags that are given change the record. The raw total and
// the checksum are always recomputed from the new values. The edited file
// is never archived.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/tax-transaction-manager/internal/csvparser"
	"github.com/ginjaninja78/tax-transaction-manager/internal/processor"
	"github.com/ginjaninja78/tax-transaction-manager/internal/validation"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	editFile          string
	editRow           int
	editItemCode      string
	editInternalPrice string
	editDiscount      string
	editSalePrice     string
	editQuantity      string
	editTaxRate       float64
	editDryRun        bool
)

// =============================================================================
// EDIT COMMAND DEFINITION
// =============================================================================

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit one record of a transaction file and re-validate it",
	Long: `The edit command imports a transaction file, validates it and then applies
the given changes to the record at --row (1-based, in import order).

The record's raw total and checksum are recomputed and the record is
validated again. Reports are written with the edited values unless
--dry-run is set; the input file itself is left untouched.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVar(&editFile, "file", "", "Transaction file to edit (required)")
	editCmd.Flags().IntVar(&editRow, "row", 0, "Record to edit, 1-based in import order (required)")
	editCmd.Flags().StringVar(&editItemCode, "item-code", "", "New item code")
	editCmd.Flags().StringVar(&editInternalPrice, "internal-price", "", "New internal price")
	editCmd.Flags().StringVar(&editDiscount, "discount", "", "New discount in percent")
	editCmd.Flags().StringVar(&editSalePrice, "sale-price", "", "New sale price")
	editCmd.Flags().StringVar(&editQuantity, "quantity", "", "New quantity")
	editCmd.Flags().Float64Var(&editTaxRate, "tax-rate", 0, "Tax rate in percent (default from config)")
	editCmd.Flags().BoolVar(&editDryRun, "dry-run", false, "Show the result without writing reports or history")

	editCmd.MarkFlagRequired("file")
	editCmd.MarkFlagRequired("row")
}

// =============================================================================
// MAIN EDIT FUNCTION
// =============================================================================

func runEdit(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	edit := processor.RowEdit{Row: editRow}
	flags := cmd.Flags()
	if flags.Changed("item-code") {
		edit.ItemCode = &editItemCode
	}
	if flags.Changed("internal-price") {
		edit.InternalPrice = &editInternalPrice
	}
	if flags.Changed("discount") {
		edit.Discount = &editDiscount
	}
	if flags.Changed("sale-price") {
		edit.SalePrice = &editSalePrice
	}
	if flags.Changed("quantity") {
		edit.Quantity = &editQuantity
	}

	opts := processor.Options{
		TaxRate:          mainConfig.TaxRate,
		DeleteZeroProfit: mainConfig.DeleteZeroProfit,
		DryRun:           editDryRun,
		Edits:            []processor.RowEdit{edit},
	}
	if flags.Changed("tax-rate") {
		opts.TaxRate = editTaxRate
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
	result := p.Run(cmd.Context(), editFile, opts)
	if result.Error != nil {
		if errors.Is(result.Error, processor.ErrRowOutOfRange) {
			return fmt.Errorf("cannot edit row %d of %s: %w", editRow, editFile, result.Error)
		}
		return result.Error
	}

	// Zero-profit deletion may have removed the edited record.
	if editRow <= len(result.Transactions) && !opts.DeleteZeroProfit {
		t := result.Transactions[editRow-1]
		fmt.Fprintf(out, "Row %d (%s)\n", editRow, t.BillNumber)
		fmt.Fprintf(out, "  Item code:      %s\n", t.ItemCode)
		fmt.Fprintf(out, "  Internal price: %s\n", validation.FormatAmount(t.InternalPrice))
		fmt.Fprintf(out, "  Discount:       %s\n", validation.FormatAmount(t.Discount))
		fmt.Fprintf(out, "  Sale price:     %s\n", validation.FormatAmount(t.SalePrice))
		fmt.Fprintf(out, "  Quantity:       %d\n", t.Quantity)
		fmt.Fprintf(out, "  Raw total:      %s\n", validation.FormatAmount(t.RawTotal))
		fmt.Fprintf(out, "  Checksum:       %d (imported %d)\n", t.CurrentChecksum, t.ImportedChecksum())
		fmt.Fprintf(out, "  Profit:         %s\n", validation.FormatAmount(t.Profit))
		fmt.Fprintf(out, "  Valid:          %t\n", t.Valid)
	}

	fmt.Fprintf(out, "Valid records:  %d of %d\n", result.Summary.Valid, result.Summary.Total)
	fmt.Fprintf(out, "Final Tax:      %.2f\n", result.Summary.FinalTax)
	for _, output := range result.OutputFiles {
		fmt.Fprintf(out, "Report:         %s\n", output)
	}
	return nil
}
