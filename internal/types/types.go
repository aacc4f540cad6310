// =============================================================================
// Tax Transaction Manager - Shared Types
// =============================================================================
//
// This package contains the transaction record shared by every other module
// to avoid import cycles. Types defined here are used by:
//   - csvparser  (builds records from input rows)
//   - validation (computes checksum, profit and validity)
//   - engine     (owns the collection)
//   - xlsxwriter / xmlwriter (report output, ReportSummary)
//
// =============================================================================

package types

// =============================================================================
// TRANSACTION RECORD
// =============================================================================

// Transaction represents one row of imported or edited sales data.
//
// Profit and Valid are derived fields. They are NOT kept in sync with the
// other fields automatically: they reflect the values at the time profit
// calculation or validation last ran.
type Transaction struct {
	// ID is the stable identity assigned at import time.
	// Delete and update operations address records by this value.
	ID string

	// BillNumber identifies the bill the item was sold on. Free text.
	BillNumber string

	// ItemCode identifies the item. Free text; validation checks its shape.
	ItemCode string

	// InternalPrice is the cost of one unit.
	InternalPrice float64

	// Discount is a percentage applied to the sale price (0-100, not enforced).
	Discount float64

	// SalePrice is the list price of one unit before discount.
	SalePrice float64

	// Quantity is the number of units sold.
	Quantity int32

	// RawTotal is the revenue after discount. Read from input on import,
	// recomputed on edit.
	RawTotal float64

	// CurrentChecksum is recomputed from the current field values whenever
	// the record is edited.
	CurrentChecksum int32

	// Valid is the outcome of the last validation run.
	Valid bool

	// Profit is the outcome of the last profit calculation.
	Profit float64

	// Original holds the verbatim text of the numeric input fields.
	Original OriginalValues

	// importedChecksum is the checksum read from the source file.
	// It is unexported so it cannot change after construction.
	importedChecksum int32
}

// OriginalValues keeps the textual representation of the numeric fields
// exactly as they appeared in the source file.
type OriginalValues struct {
	InternalPrice string
	Discount      string
	SalePrice     string
	Quantity      string
	RawTotal      string
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// NewTransaction builds a record in its freshly imported state:
// CurrentChecksum equals the imported checksum and Valid is true.
// Profit is left at zero until it is calculated.
func NewTransaction(id, billNumber, itemCode string,
	internalPrice, discount, salePrice float64, quantity int32,
	rawTotal float64, checksum int32, original OriginalValues) Transaction {
	return Transaction{
		ID:               id,
		BillNumber:       billNumber,
		ItemCode:         itemCode,
		InternalPrice:    internalPrice,
		Discount:         discount,
		SalePrice:        salePrice,
		Quantity:         quantity,
		RawTotal:         rawTotal,
		CurrentChecksum:  checksum,
		Valid:            true,
		Original:         original,
		importedChecksum: checksum,
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ImportedChecksum returns the checksum as read from the source file.
func (t *Transaction) ImportedChecksum() int32 {
	return t.importedChecksum
}

// IsEdited reports whether the record has been changed through an update
// since it was imported.
func (t *Transaction) IsEdited() bool {
	return t.CurrentChecksum != t.importedChecksum
}

// =============================================================================
// REPORT SUMMARY
// =============================================================================

// ReportSummary holds the totals written alongside the records in every
// report.
type ReportSummary struct {
	// SourceFile is the input file the records were imported from.
	SourceFile string

	// Total, Valid and Invalid count the records in the report.
	Total   int
	Valid   int
	Invalid int

	// Skipped counts the malformed input rows that were not imported.
	Skipped int

	// Deleted counts the zero-profit records removed before reporting.
	Deleted int

	// TaxRate is the percentage the final tax was calculated with.
	TaxRate float64

	// FinalTax is the tax over the profit of the valid records.
	FinalTax float64
}
