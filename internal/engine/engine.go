// =============================================================================
// Tax Transaction Manager - Transaction Engine
// =============================================================================
//
// The engine owns the in-memory collection of transactions and exposes every
// operation a front end may run on it, in any order, any number of times:
//
//   Import            replace the collection with the rows of a file
//   List              snapshot of the collection in import order
//   CalculateProfits  recompute profit for every record
//   ValidateAll       recompute profit for every record, then validate each
//   DeleteZeroProfit  drop records whose profit is exactly zero
//   Delete            drop one record by ID
//   Update            edit one record, recompute raw total and checksum,
//                     then re-validate it
//   CalculateFinalTax tax over the profit of valid records
//
// CONCURRENCY:
//   None. The engine is not safe for concurrent use; wrap it in external
//   synchronization if it has to be shared between goroutines.
//
// =============================================================================

package engine

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/tax-transaction-manager/internal/csvparser"
	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/ginjaninja78/tax-transaction-manager/internal/validation"
	"go.uber.org/zap"
)

// ErrNoTransactions is returned by Import when no row could be parsed.
var ErrNoTransactions = errors.New("no valid transactions found")

// Loader reads a transaction file.
//
//go:generate mockgen -destination=mocks/mock_loader.go -package=mocks -source=engine.go
type Loader interface {
	Load(path string) (*csvparser.ParseResult, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine holds the transaction collection.
type Engine struct {
	loader       Loader
	logger       *zap.Logger
	transactions []types.Transaction

	// lastImport is the parse result of the most recent successful load.
	lastImport *csvparser.ParseResult
}

// New creates an Engine reading files through loader.
func New(loader Loader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		loader: loader,
		logger: logger,
	}
}

// Summary counts the records by validity.
type Summary struct {
	Total   int
	Valid   int
	Invalid int
}

// =============================================================================
// IMPORT AND READ
// =============================================================================

// Import replaces the collection with the records read from path.
//
// The collection is cleared before the file is read, so a failed import
// leaves it empty. Malformed rows are logged and skipped. An error is
// returned when the file cannot be read or when no row was accepted.
func (e *Engine) Import(path string) error {
	e.transactions = nil
	e.lastImport = nil

	result, err := e.loader.Load(path)
	if err != nil {
		e.logger.Error("failed to load transactions", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	for _, skipped := range result.Skipped {
		e.logger.Warn("skipping malformed row",
			zap.String("path", path),
			zap.Int("line", skipped.Line),
			zap.String("reason", skipped.Reason),
			zap.String("row", skipped.Raw),
		)
	}

	e.transactions = append(e.transactions, result.Transactions...)
	e.lastImport = result

	if len(e.transactions) == 0 {
		return fmt.Errorf("failed to import %s: %w", path, ErrNoTransactions)
	}

	e.logger.Info("imported transactions",
		zap.String("path", path),
		zap.Int("count", len(e.transactions)),
		zap.Int("skipped", len(result.Skipped)),
	)

	return nil
}

// LastImport returns the parse result of the most recent import, or nil.
func (e *Engine) LastImport() *csvparser.ParseResult {
	return e.lastImport
}

// List returns a copy of the collection in import order.
// The copy does not follow later changes; call List again after mutating.
func (e *Engine) List() []types.Transaction {
	out := make([]types.Transaction, len(e.transactions))
	copy(out, e.transactions)
	return out
}

// Len returns the number of records.
func (e *Engine) Len() int {
	return len(e.transactions)
}

// Get returns the record with the given ID.
func (e *Engine) Get(id string) (types.Transaction, bool) {
	if i := e.indexOf(id); i >= 0 {
		return e.transactions[i], true
	}
	return types.Transaction{}, false
}

// Summary counts the records by their last validation outcome.
func (e *Engine) Summary() Summary {
	summary := Summary{Total: len(e.transactions)}
	for i := range e.transactions {
		if e.transactions[i].Valid {
			summary.Valid++
		}
	}
	summary.Invalid = summary.Total - summary.Valid
	return summary
}

// =============================================================================
// CALCULATION AND VALIDATION
// =============================================================================

// CalculateProfits recomputes the profit of every record.
func (e *Engine) CalculateProfits() {
	for i := range e.transactions {
		validation.ApplyProfit(&e.transactions[i])
	}
}

// ValidateAll recomputes every profit first, then validates every record.
func (e *Engine) ValidateAll() {
	e.CalculateProfits()

	for i := range e.transactions {
		e.validate(&e.transactions[i])
	}
}

// validate runs single-record validation and logs the breakdown.
func (e *Engine) validate(t *types.Transaction) {
	result := validation.Validate(t)

	e.logger.Debug("validated transaction",
		zap.String("id", t.ID),
		zap.String("item_code", t.ItemCode),
		zap.Bool("valid_item_code", result.ValidItemCode),
		zap.Bool("non_negative_profit", result.NonNegativeProfit),
		zap.Bool("edited", result.Edited),
		zap.Bool("checksum_valid", result.ChecksumValid),
		zap.Int32("current_checksum", t.CurrentChecksum),
		zap.Int32("imported_checksum", t.ImportedChecksum()),
		zap.Bool("valid", result.Valid),
	)
}

// CalculateFinalTax returns rate percent of the summed profit of the records
// currently marked valid. It neither validates nor changes the collection.
func (e *Engine) CalculateFinalTax(rate float64) float64 {
	var totalProfit float64
	for i := range e.transactions {
		if e.transactions[i].Valid {
			totalProfit += e.transactions[i].Profit
		}
	}
	return totalProfit * (rate / 100.0)
}

// =============================================================================
// MUTATIONS
// =============================================================================

// DeleteZeroProfit removes every record whose profit is exactly zero and
// returns how many were removed.
func (e *Engine) DeleteZeroProfit() int {
	kept := e.transactions[:0]
	for _, t := range e.transactions {
		if t.Profit != 0 {
			kept = append(kept, t)
		}
	}

	removed := len(e.transactions) - len(kept)
	clear(e.transactions[len(kept):])
	e.transactions = kept

	if removed > 0 {
		e.logger.Info("deleted zero-profit transactions", zap.Int("count", removed))
	}
	return removed
}

// Delete removes the record with the given ID. It reports false when no
// such record exists, in which case nothing changes.
func (e *Engine) Delete(id string) bool {
	i := e.indexOf(id)
	if i < 0 {
		return false
	}

	e.transactions = append(e.transactions[:i], e.transactions[i+1:]...)
	e.logger.Debug("deleted transaction", zap.String("id", id))
	return true
}

// Edit carries the editable fields of a record.
type Edit struct {
	ItemCode      string
	InternalPrice float64
	Discount      float64
	SalePrice     float64
	Quantity      int32
}

// Update replaces the editable fields of the record with the given ID,
// recomputes its raw total and current checksum and validates it again.
// The imported checksum is never touched. It reports false when no such
// record exists.
func (e *Engine) Update(id string, edit Edit) bool {
	i := e.indexOf(id)
	if i < 0 {
		return false
	}

	t := &e.transactions[i]
	t.ItemCode = edit.ItemCode
	t.InternalPrice = edit.InternalPrice
	t.Discount = edit.Discount
	t.SalePrice = edit.SalePrice
	t.Quantity = edit.Quantity

	t.RawTotal = validation.DiscountedTotal(edit.SalePrice, edit.Discount, edit.Quantity)
	t.CurrentChecksum = validation.Checksum(t)

	e.validate(t)

	e.logger.Info("updated transaction",
		zap.String("id", id),
		zap.Float64("raw_total", t.RawTotal),
		zap.Int32("current_checksum", t.CurrentChecksum),
		zap.Bool("valid", t.Valid),
	)
	return true
}

// =============================================================================
// TEXT INPUT
// =============================================================================

// EditInput carries the editable fields as typed by a user.
type EditInput struct {
	ItemCode      string
	InternalPrice string
	Discount      string
	SalePrice     string
	Quantity      string
}

// InputError reports a field of an EditInput that is not a number.
type InputError struct {
	Field string
	Value string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %q is not a number", e.Field, e.Value)
}

// ErrTransactionNotFound is returned by UpdateFromInput for an unknown ID.
var ErrTransactionNotFound = errors.New("transaction not found")

// ParseEdit converts textual input to an Edit. Every numeric field is checked
// before anything is returned, with the same rules as the importer.
func ParseEdit(in EditInput) (Edit, error) {
	internalPrice, err := parseFloatInput("internal price", in.InternalPrice)
	if err != nil {
		return Edit{}, err
	}
	discount, err := parseFloatInput("discount", in.Discount)
	if err != nil {
		return Edit{}, err
	}
	salePrice, err := parseFloatInput("sale price", in.SalePrice)
	if err != nil {
		return Edit{}, err
	}
	quantity, ok := csvparser.ParseInteger(in.Quantity)
	if !ok {
		return Edit{}, &InputError{Field: "quantity", Value: in.Quantity}
	}

	return Edit{
		ItemCode:      in.ItemCode,
		InternalPrice: internalPrice,
		Discount:      discount,
		SalePrice:     salePrice,
		Quantity:      quantity,
	}, nil
}

// UpdateFromInput parses in and applies it to the record with the given ID.
// Invalid numeric input is rejected before the record is touched.
func (e *Engine) UpdateFromInput(id string, in EditInput) error {
	edit, err := ParseEdit(in)
	if err != nil {
		return err
	}
	if !e.Update(id, edit) {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// indexOf returns the position of the record with the given ID, or -1.
func (e *Engine) indexOf(id string) int {
	for i := range e.transactions {
		if e.transactions[i].ID == id {
			return i
		}
	}
	return -1
}

func parseFloatInput(field, value string) (float64, error) {
	parsed, ok := csvparser.ParseDecimal(value)
	if !ok {
		return 0, &InputError{Field: field, Value: value}
	}
	return parsed, nil
}
