// =============================================================================
// Tax Transaction Manager - CSV Parser Module
// =============================================================================
//
// This module is responsible for turning the rows of a transaction export
// file into transaction records.
//
// FILE FORMAT:
//   BillNumber,ItemCode,InternalPrice,Discount,SalePrice,Quantity,RawTotal,Checksum
//
//   - Fields are separated by a plain comma. There is no quoting or escaping:
//     a field containing a comma corrupts the row.
//   - Lines end with "\n", "\r\n" or a lone "\r".
//   - The first line is a header when it contains "BillID" or "ItemCode".
//   - A row needs at least 8 fields. Extra fields are ignored.
//
// ERROR HANDLING:
//   A malformed row is recorded in ParseResult.Skipped and parsing carries on
//   with the next line. Only I/O failures abort parsing.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/google/uuid"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// FieldCount is the minimum number of fields in a data row.
const FieldCount = 8

// Positional field indexes.
const (
	colBillNumber = iota
	colItemCode
	colInternalPrice
	colDiscount
	colSalePrice
	colQuantity
	colRawTotal
	colChecksum
)

// headerMarkers identify a header line. Only the first line is checked.
var headerMarkers = []string{"BillID", "ItemCode"}

// maxLineLength bounds a single input line.
const maxLineLength = 1024 * 1024

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// ParseResult represents a parsed transaction file.
type ParseResult struct {
	// Transactions contains the accepted records in file order.
	Transactions []types.Transaction

	// Skipped contains one entry per rejected row.
	Skipped []RowError

	// SourceFile is the path to the source file, empty for reader input.
	SourceFile string

	// HeaderSkipped is true when the first line was treated as a header.
	HeaderSkipped bool

	// LinesRead is the number of lines read, header included.
	LinesRead int
}

// RowError describes a rejected row.
type RowError struct {
	// Line is the 1-indexed line number in the source.
	Line int

	// Raw is the row text as read.
	Raw string

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s (row: %q)", e.Line, e.Reason, e.Raw)
}

// =============================================================================
// PARSER
// =============================================================================

// Parser converts rows into transaction records.
type Parser struct {
	// NewID generates the identity of each accepted record.
	// Default: random UUID.
	NewID func() string
}

// New returns a Parser with default settings.
func New() *Parser {
	return &Parser{NewID: uuid.NewString}
}

// ParseFile reads a transaction file from path using the default parser.
//
// RETURNS:
//   - The parse result. Rows that fail to parse are listed in Skipped.
//   - An error if the file cannot be opened or read.
func ParseFile(path string) (*ParseResult, error) {
	return New().ParseFile(path)
}

// Parse reads transaction rows from r using the default parser.
func Parse(r io.Reader) (*ParseResult, error) {
	return New().Parse(r)
}

// ParseFile reads a transaction file from path.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result, err := p.Parse(file)
	if err != nil {
		return nil, err
	}
	result.SourceFile = path

	return result, nil
}

// Parse reads transaction rows from r.
//
// PARSING PROCESS:
//   1. Read the input line by line
//   2. Drop the first line if it looks like a header
//   3. Split each remaining line on commas
//   4. Convert accepted rows to records, collect rejected rows
func (p *Parser) Parse(r io.Reader) (*ParseResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	scanner.Split(scanLines)

	result := &ParseResult{}

	for scanner.Scan() {
		line := scanner.Text()
		result.LinesRead++

		if result.LinesRead == 1 && isHeader(line) {
			result.HeaderSkipped = true
			continue
		}

		// Blank lines carry no data and are not worth a diagnostic.
		if strings.TrimSpace(line) == "" {
			continue
		}

		transaction, err := p.parseRow(line)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{
				Line:   result.LinesRead,
				Raw:    line,
				Reason: err.Error(),
			})
			continue
		}

		result.Transactions = append(result.Transactions, transaction)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input at line %d: %w", result.LinesRead+1, err)
	}

	return result, nil
}

// parseRow converts a single line to a record.
func (p *Parser) parseRow(line string) (types.Transaction, error) {
	fields := splitFields(line)
	if len(fields) < FieldCount {
		return types.Transaction{}, fmt.Errorf("expected at least %d fields, got %d", FieldCount, len(fields))
	}

	internalPrice, err := parseDecimal("internal price", fields[colInternalPrice])
	if err != nil {
		return types.Transaction{}, err
	}
	discount, err := parseDecimal("discount", fields[colDiscount])
	if err != nil {
		return types.Transaction{}, err
	}
	salePrice, err := parseDecimal("sale price", fields[colSalePrice])
	if err != nil {
		return types.Transaction{}, err
	}
	quantity, err := parseInteger("quantity", fields[colQuantity])
	if err != nil {
		return types.Transaction{}, err
	}
	rawTotal, err := parseDecimal("raw total", fields[colRawTotal])
	if err != nil {
		return types.Transaction{}, err
	}
	checksum, err := parseInteger("checksum", fields[colChecksum])
	if err != nil {
		return types.Transaction{}, err
	}

	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return types.NewTransaction(
		newID(),
		fields[colBillNumber],
		fields[colItemCode],
		internalPrice,
		discount,
		salePrice,
		quantity,
		rawTotal,
		checksum,
		types.OriginalValues{
			InternalPrice: fields[colInternalPrice],
			Discount:      fields[colDiscount],
			SalePrice:     fields[colSalePrice],
			Quantity:      fields[colQuantity],
			RawTotal:      fields[colRawTotal],
		},
	), nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isHeader checks the header markers against a line.
func isHeader(line string) bool {
	for _, marker := range headerMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// splitFields splits a line on commas and drops trailing empty fields,
// so "a,b,,," yields two fields.
func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// scanLines is a bufio.SplitFunc ending a line at "\n", "\r\n" or a lone
// "\r". The terminator is not part of the token.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// The "\n" of a "\r\n" pair may not be buffered yet.
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ParseDecimal parses a decimal field the way rows are imported. Surrounding
// whitespace is allowed. NaN and Infinity, with an optional sign, are the
// only spellings of the special values. A literal beyond the float64 range
// becomes an infinity of its sign.
func ParseDecimal(value string) (float64, bool) {
	text := strings.TrimSpace(value)

	body, sign := text, 1
	if body != "" && (body[0] == '+' || body[0] == '-') {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	switch body {
	case "NaN":
		return math.NaN(), true
	case "Infinity":
		return math.Inf(sign), true
	}
	switch strings.ToLower(body) {
	case "inf", "infinity", "nan":
		return 0, false
	}

	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return parsed, true
		}
		return 0, false
	}
	return parsed, true
}

// ParseInteger parses a 32-bit integer field the way rows are imported.
// Whitespace is not allowed.
func ParseInteger(value string) (int32, bool) {
	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(parsed), true
}

func parseDecimal(name, value string) (float64, error) {
	parsed, ok := ParseDecimal(value)
	if !ok {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return parsed, nil
}

func parseInteger(name, value string) (int32, error) {
	parsed, ok := ParseInteger(value)
	if !ok {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return parsed, nil
}

// =============================================================================
// LOADER
// =============================================================================

// FileLoader loads transaction files from disk.
// It satisfies the engine's Loader interface.
type FileLoader struct {
	Parser *Parser
}

// NewFileLoader returns a FileLoader using the default parser.
func NewFileLoader() *FileLoader {
	return &FileLoader{Parser: New()}
}

// Load parses the file at path.
func (l *FileLoader) Load(path string) (*ParseResult, error) {
	parser := l.Parser
	if parser == nil {
		parser = New()
	}
	return parser.ParseFile(path)
}
