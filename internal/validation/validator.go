// =============================================================================
// Tax Transaction Manager - Validation Engine
// =============================================================================
//
// This module holds the business rules applied to a single transaction:
//   - Profit calculation
//   - Checksum calculation
//   - Validity evaluation
//
// VALIDATION RULES:
//   A transaction is valid when ALL of the following hold:
//   1. Item code contains only letters, digits and underscores (non-empty)
//   2. Profit is not negative
//   3. Checksum is consistent:
//      - edited records (current checksum differs from the imported one)
//        always pass, the update already stored a fresh checksum
//      - unedited records must recompute to the imported checksum
//
// =============================================================================

package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/shopspring/decimal"
)

// itemCodePattern is the accepted shape of an item code.
var itemCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// =============================================================================
// PROFIT
// =============================================================================

// DiscountedPrice returns the unit sale price after the percentage discount.
func DiscountedPrice(salePrice, discount float64) float64 {
	discountAmount := salePrice * (discount / 100.0)
	return salePrice - discountAmount
}

// DiscountedTotal returns the revenue after discount for quantity units.
func DiscountedTotal(salePrice, discount float64, quantity int32) float64 {
	return DiscountedPrice(salePrice, discount) * float64(quantity)
}

// Profit returns (discounted sale price - internal price) * quantity.
// The value is not rounded.
func Profit(t *types.Transaction) float64 {
	return (DiscountedPrice(t.SalePrice, t.Discount) - t.InternalPrice) * float64(t.Quantity)
}

// ApplyProfit recalculates and stores the profit of t.
func ApplyProfit(t *types.Transaction) {
	t.Profit = Profit(t)
}

// =============================================================================
// CHECKSUM
// =============================================================================

// Checksum computes the content fingerprint of t from its current values.
//
// The fingerprint is built from:
//   item code + internal price + discount + sale price + quantity + raw total
// with every decimal formatted to two places. Uppercase letters, lowercase
// letters and digits-or-dots are counted and the three counts summed. Every
// other character counts zero.
func Checksum(t *types.Transaction) int32 {
	var line strings.Builder
	line.WriteString(t.ItemCode)
	line.WriteString(FormatAmount(t.InternalPrice))
	line.WriteString(FormatAmount(t.Discount))
	line.WriteString(FormatAmount(t.SalePrice))
	line.WriteString(strconv.FormatInt(int64(t.Quantity), 10))
	line.WriteString(FormatAmount(t.RawTotal))

	return countCharacterClasses(line.String())
}

// FormatAmount formats v with exactly two decimals, rounding half away from
// zero on the shortest decimal representation of v (1.005 -> "1.01").
// NaN and infinities are spelled out instead of formatted.
func FormatAmount(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// countCharacterClasses implements the checksum counting rule.
func countCharacterClasses(s string) int32 {
	var capital, simple, numbers int32

	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			capital++
		case unicode.IsLower(r):
			simple++
		case unicode.IsDigit(r) || r == '.':
			numbers++
		}
	}

	return capital + simple + numbers
}

// =============================================================================
// VALIDATION
// =============================================================================

// Result describes the outcome of validating one transaction.
type Result struct {
	// ValidItemCode is true when the item code has the accepted shape.
	ValidItemCode bool

	// NonNegativeProfit is true when the recalculated profit is >= 0.
	NonNegativeProfit bool

	// Edited is true when the record changed since import.
	Edited bool

	// ChecksumValid is true when the checksum rule passed.
	ChecksumValid bool

	// CalculatedChecksum is the recomputed checksum. It is only computed
	// for unedited records and is zero otherwise.
	CalculatedChecksum int32

	// Valid is the combined outcome.
	Valid bool
}

// ValidItemCode reports whether code has the accepted item code shape.
func ValidItemCode(code string) bool {
	return itemCodePattern.MatchString(code)
}

// Validate recalculates the profit of t, evaluates the three validity rules
// and stores the combined outcome in t.Valid.
func Validate(t *types.Transaction) Result {
	ApplyProfit(t)

	result := Result{
		ValidItemCode:     ValidItemCode(t.ItemCode),
		NonNegativeProfit: t.Profit >= 0,
		Edited:            t.IsEdited(),
	}

	if result.Edited {
		result.ChecksumValid = true
	} else {
		result.CalculatedChecksum = Checksum(t)
		result.ChecksumValid = result.CalculatedChecksum == t.ImportedChecksum()
	}

	result.Valid = result.ValidItemCode && result.NonNegativeProfit && result.ChecksumValid
	t.Valid = result.Valid

	return result
}
