package csvparser

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantCodes     []string
		wantSkipped   []int
		wantHeader    bool
		wantLinesRead int
	}{
		{
			name:          "no header",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,24\nB2,ITM2,2.50,50,10.00,2,10.00,24\n",
			wantCodes:     []string{"ITM1", "ITM2"},
			wantLinesRead: 2,
		},
		{
			name:          "header with BillID",
			input:         "BillID,Item,Internal,Discount,Sale,Qty,Total,Checksum\nB1,ITM1,10.00,0,20.00,1,20.00,24\n",
			wantCodes:     []string{"ITM1"},
			wantHeader:    true,
			wantLinesRead: 2,
		},
		{
			name:          "header with ItemCode",
			input:         "Bill,ItemCode,Internal,Discount,Sale,Qty,Total,Checksum\nB1,ITM1,10.00,0,20.00,1,20.00,24\n",
			wantCodes:     []string{"ITM1"},
			wantHeader:    true,
			wantLinesRead: 2,
		},
		{
			name:          "header marker after first line is data",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,24\nBillID,ItemCode,a,b,c,d,e,f\n",
			wantCodes:     []string{"ITM1"},
			wantSkipped:   []int{2},
			wantLinesRead: 2,
		},
		{
			name:          "too few fields",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00\nB2,ITM2,2.50,50,10.00,2,10.00,24\n",
			wantCodes:     []string{"ITM2"},
			wantSkipped:   []int{1},
			wantLinesRead: 2,
		},
		{
			name:          "trailing empty fields do not count",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,,,\n",
			wantCodes:     nil,
			wantSkipped:   []int{1},
			wantLinesRead: 1,
		},
		{
			name:          "extra fields are ignored",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,24,note,more\n",
			wantCodes:     []string{"ITM1"},
			wantLinesRead: 1,
		},
		{
			name:          "non numeric price skips the row only",
			input:         "B1,ITM1,ten,0,20.00,1,20.00,24\nB2,ITM2,2.50,50,10.00,2,10.00,24\n",
			wantCodes:     []string{"ITM2"},
			wantSkipped:   []int{1},
			wantLinesRead: 2,
		},
		{
			name:          "fractional quantity is rejected",
			input:         "B1,ITM1,10.00,0,20.00,1.5,20.00,24\n",
			wantSkipped:   []int{1},
			wantLinesRead: 1,
		},
		{
			name:          "blank lines are ignored silently",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,24\n\n   \nB2,ITM2,2.50,50,10.00,2,10.00,24\n",
			wantCodes:     []string{"ITM1", "ITM2"},
			wantLinesRead: 4,
		},
		{
			name:          "windows line endings",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,24\r\nB2,ITM2,2.50,50,10.00,2,10.00,24\r\n",
			wantCodes:     []string{"ITM1", "ITM2"},
			wantLinesRead: 2,
		},
		{
			name:          "carriage return line endings",
			input:         "B1,ITM1,10.00,0,20.00,1,20.00,24\rB2,ITM2,2.50,50,10.00,2,10.00,24\r",
			wantCodes:     []string{"ITM1", "ITM2"},
			wantLinesRead: 2,
		},
		{
			name:          "mixed line endings",
			input:         "BillID,ItemCode\rB1,ITM1,10.00,0,20.00,1,20.00,24\r\rB2,ITM2,2.50,50,10.00,2,10.00,24\r\nB3,ITM3,10.00,0,10.00,1,10.00,24",
			wantCodes:     []string{"ITM1", "ITM2", "ITM3"},
			wantHeader:    true,
			wantLinesRead: 5,
		},
		{
			name:          "quoted comma corrupts the row",
			input:         "B1,\"ITM,1\",10.00,0,20.00,1,20.00,24\n",
			wantSkipped:   []int{1},
			wantLinesRead: 1,
		},
		{
			name:          "empty input",
			input:         "",
			wantLinesRead: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &Parser{NewID: sequentialIDs()}

			got, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)

			var codes []string
			for _, tx := range got.Transactions {
				codes = append(codes, tx.ItemCode)
			}
			assert.Equal(t, tt.wantCodes, codes)

			var skippedLines []int
			for _, s := range got.Skipped {
				skippedLines = append(skippedLines, s.Line)
			}
			assert.Equal(t, tt.wantSkipped, skippedLines)
			assert.Equal(t, tt.wantHeader, got.HeaderSkipped)
			assert.Equal(t, tt.wantLinesRead, got.LinesRead)
		})
	}
}

func TestParser_Parse_RecordFields(t *testing.T) {
	parser := &Parser{NewID: sequentialIDs()}

	got, err := parser.Parse(strings.NewReader("B7,ITM_7, 10.5 ,12.5,20,3,52.50,27\n"))
	require.NoError(t, err)
	require.Len(t, got.Transactions, 1)

	tx := got.Transactions[0]
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, "B7", tx.BillNumber)
	assert.Equal(t, "ITM_7", tx.ItemCode)
	assert.Equal(t, 10.5, tx.InternalPrice)
	assert.Equal(t, 12.5, tx.Discount)
	assert.Equal(t, 20.0, tx.SalePrice)
	assert.Equal(t, int32(3), tx.Quantity)
	assert.Equal(t, 52.5, tx.RawTotal)
	assert.Equal(t, int32(27), tx.ImportedChecksum())
	assert.Equal(t, int32(27), tx.CurrentChecksum)
	assert.True(t, tx.Valid)
	assert.Zero(t, tx.Profit)
	assert.False(t, tx.IsEdited())
	assert.Equal(t, types.OriginalValues{
		InternalPrice: " 10.5 ",
		Discount:      "12.5",
		SalePrice:     "20",
		Quantity:      "3",
		RawTotal:      "52.50",
	}, tx.Original)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		value   string
		want    float64
		wantErr bool
	}{
		{value: " 10.5 ", want: 10.5},
		{value: "Infinity", want: math.Inf(1)},
		{value: "+Infinity", want: math.Inf(1)},
		{value: "-Infinity", want: math.Inf(-1)},
		{value: "1e400", want: math.Inf(1)},
		{value: "-1e400", want: math.Inf(-1)},
		{value: "1e-400", want: 0},
		{value: "inf", wantErr: true},
		{value: "Inf", wantErr: true},
		{value: "-inf", wantErr: true},
		{value: "infinity", wantErr: true},
		{value: "INFINITY", wantErr: true},
		{value: "nan", wantErr: true},
		{value: "NAN", wantErr: true},
		{value: "1_000", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseDecimal("price", tt.value)
			if tt.wantErr {
				assert.EqualError(t, err, fmt.Sprintf("invalid price %q", tt.value))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, value := range []string{"NaN", "-NaN", " NaN "} {
		got, err := parseDecimal("price", value)
		require.NoError(t, err, value)
		assert.True(t, math.IsNaN(got), value)
	}
}

func TestParser_Parse_RowErrorDetails(t *testing.T) {
	got, err := Parse(strings.NewReader("B1,ITM1,10.00,0,20.00,x,20.00,24\n"))
	require.NoError(t, err)
	require.Len(t, got.Skipped, 1)

	rowErr := got.Skipped[0]
	assert.Equal(t, 1, rowErr.Line)
	assert.Equal(t, "B1,ITM1,10.00,0,20.00,x,20.00,24", rowErr.Raw)
	assert.Contains(t, rowErr.Reason, "quantity")
	assert.Contains(t, rowErr.Error(), "line 1")
}

func TestParser_Parse_DefaultIDsAreUnique(t *testing.T) {
	input := "B1,ITM1,10.00,0,20.00,1,20.00,24\nB1,ITM1,10.00,0,20.00,1,20.00,24\n"

	got, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got.Transactions, 2)

	assert.NotEmpty(t, got.Transactions[0].ID)
	assert.NotEqual(t, got.Transactions[0].ID, got.Transactions[1].ID)
}

func TestParseFile(t *testing.T) {
	t.Run("reads file and records source", func(t *testing.T) {
		path := writeTempFile(t, "B1,ITM1,10.00,0,20.00,1,20.00,24\n")

		got, err := ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, path, got.SourceFile)
		assert.Len(t, got.Transactions, 1)
	})

	t.Run("file not found", func(t *testing.T) {
		got, err := ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestFileLoader_Load(t *testing.T) {
	path := writeTempFile(t, "BillID,ItemCode\nB1,ITM1,10.00,0,20.00,1,20.00,24\n")

	loader := &FileLoader{Parser: &Parser{NewID: sequentialIDs()}}
	got, err := loader.Load(path)
	require.NoError(t, err)
	assert.True(t, got.HeaderSkipped)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "tx-1", got.Transactions[0].ID)

	_, err = NewFileLoader().Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
