package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/tax-transaction-manager/internal/csvparser"
	"github.com/ginjaninja78/tax-transaction-manager/internal/engine"
	"github.com/ginjaninja78/tax-transaction-manager/internal/engine/mocks"
	"github.com/ginjaninja78/tax-transaction-manager/internal/types"
	"github.com/ginjaninja78/tax-transaction-manager/internal/validation"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record builds a freshly imported transaction whose checksum matches its
// own field values.
func record(id, itemCode string, internal, discount, sale float64, quantity int32, rawTotal float64) types.Transaction {
	probe := types.NewTransaction(id, "B-"+id, itemCode, internal, discount, sale, quantity, rawTotal, 0, types.OriginalValues{})
	checksum := validation.Checksum(&probe)
	return types.NewTransaction(id, "B-"+id, itemCode, internal, discount, sale, quantity, rawTotal, checksum, types.OriginalValues{})
}

func newEngine(t *testing.T, transactions ...types.Transaction) *engine.Engine {
	t.Helper()
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load("input.csv").Return(&csvparser.ParseResult{Transactions: transactions}, nil)

	e := engine.New(loader, nil)
	require.NoError(t, e.Import("input.csv"))
	return e
}

func ids(transactions []types.Transaction) []string {
	var out []string
	for _, tx := range transactions {
		out = append(out, tx.ID)
	}
	return out
}

func TestEngine_Import(t *testing.T) {
	loadErr := errors.New("permission denied")

	tests := []struct {
		name    string
		result  *csvparser.ParseResult
		err     error
		wantErr error
		wantLen int
	}{
		{
			name: "rows accepted",
			result: &csvparser.ParseResult{
				Transactions: []types.Transaction{record("a", "ITM1", 10, 0, 20, 1, 20), record("b", "ITM2", 1, 0, 2, 1, 2)},
				Skipped:      []csvparser.RowError{{Line: 3, Raw: "garbage", Reason: "expected at least 8 fields, got 1"}},
			},
			wantLen: 2,
		},
		{
			name:    "load failure",
			err:     loadErr,
			wantErr: loadErr,
		},
		{
			name: "every row rejected",
			result: &csvparser.ParseResult{
				Skipped: []csvparser.RowError{{Line: 1, Raw: "x", Reason: "bad"}},
			},
			wantErr: engine.ErrNoTransactions,
		},
		{
			name:    "empty file",
			result:  &csvparser.ParseResult{},
			wantErr: engine.ErrNoTransactions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			loader := mocks.NewMockLoader(ctrl)
			loader.EXPECT().Load("first.csv").Return(&csvparser.ParseResult{
				Transactions: []types.Transaction{record("old", "OLD", 1, 0, 2, 1, 2)},
			}, nil)
			loader.EXPECT().Load("second.csv").Return(tt.result, tt.err)

			e := engine.New(loader, nil)
			require.NoError(t, e.Import("first.csv"))

			err := e.Import("second.csv")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tt.wantLen, e.Len())
			_, found := e.Get("old")
			assert.False(t, found)
		})
	}
}

func TestEngine_Import_LastImport(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 10, 0, 20, 1, 20))

	last := e.LastImport()
	require.NotNil(t, last)
	assert.Len(t, last.Transactions, 1)
}

func TestEngine_List_ReturnsCopy(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 10, 0, 20, 1, 20))

	listed := e.List()
	listed[0].ItemCode = "CHANGED"

	got, found := e.Get("a")
	require.True(t, found)
	assert.Equal(t, "ITM1", got.ItemCode)
}

func TestEngine_ValidateAll(t *testing.T) {
	e := newEngine(t,
		record("ok", "ITM1", 10, 0, 20, 1, 20),
		record("badcode", "ITM-1", 10, 0, 20, 1, 20),
		record("loss", "ITM3", 30, 0, 20, 1, 20),
	)

	e.ValidateAll()

	valid := map[string]bool{}
	profit := map[string]float64{}
	for _, tx := range e.List() {
		valid[tx.ID] = tx.Valid
		profit[tx.ID] = tx.Profit
	}

	assert.Equal(t, map[string]bool{"ok": true, "badcode": false, "loss": false}, valid)
	assert.Equal(t, map[string]float64{"ok": 10, "badcode": 10, "loss": -10}, profit)
	assert.Equal(t, engine.Summary{Total: 3, Valid: 1, Invalid: 2}, e.Summary())
}

func TestEngine_ValidateAll_ChecksumMismatch(t *testing.T) {
	tampered := types.NewTransaction("t", "B1", "ITM1", 10, 0, 20, 1, 20, 99, types.OriginalValues{})
	e := newEngine(t, tampered)

	e.ValidateAll()

	got, _ := e.Get("t")
	assert.False(t, got.Valid)
}

func TestEngine_CalculateFinalTax(t *testing.T) {
	e := newEngine(t,
		record("a", "ITM1", 0, 0, 100, 1, 100),
		record("b", "ITM2", 0, 0, 50, 1, 50),
		record("c", "BAD-CODE", 0, 0, 1000, 1, 1000),
	)
	e.ValidateAll()

	assert.InDelta(t, 15.0, e.CalculateFinalTax(10), 1e-9)
	assert.InDelta(t, 0.0, e.CalculateFinalTax(0), 1e-9)
	assert.InDelta(t, -15.0, e.CalculateFinalTax(-10), 1e-9)
}

func TestEngine_CalculateFinalTax_UsesLastValidation(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 0, 0, 100, 1, 100))

	// Records start out valid with zero profit until calculated.
	assert.Zero(t, e.CalculateFinalTax(10))

	e.CalculateProfits()
	assert.InDelta(t, 10.0, e.CalculateFinalTax(10), 1e-9)
}

func TestEngine_DeleteZeroProfit(t *testing.T) {
	e := newEngine(t,
		record("zero", "ITM1", 10, 0, 10, 1, 10),
		record("tiny", "ITM2", 0, 0, 0.0001, 1, 0.0001),
		record("loss", "ITM3", 30, 0, 20, 1, 20),
		record("zeroqty", "ITM4", 1, 0, 5, 0, 0),
	)
	e.CalculateProfits()

	removed := e.DeleteZeroProfit()

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"tiny", "loss"}, ids(e.List()))
	assert.Equal(t, 0, e.DeleteZeroProfit())
}

func TestEngine_Delete(t *testing.T) {
	e := newEngine(t,
		record("a", "ITM1", 10, 0, 20, 1, 20),
		record("b", "ITM2", 10, 0, 20, 1, 20),
		record("c", "ITM3", 10, 0, 20, 1, 20),
	)

	assert.True(t, e.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, ids(e.List()))

	assert.False(t, e.Delete("b"))
	assert.False(t, e.Delete("missing"))
	assert.Equal(t, 2, e.Len())
}

func TestEngine_Delete_DuplicateContent(t *testing.T) {
	first := record("first", "ITM1", 10, 0, 20, 1, 20)
	second := record("second", "ITM1", 10, 0, 20, 1, 20)
	e := newEngine(t, first, second)

	assert.True(t, e.Delete("second"))
	assert.Equal(t, []string{"first"}, ids(e.List()))
}

func TestEngine_Update(t *testing.T) {
	// "ITM1" + "10.00" + "0.00" + "40.00" + "2" + "80.00" sums to 24.
	e := newEngine(t, record("a", "ITM1", 10, 0, 40, 2, 80))
	e.ValidateAll()

	before, _ := e.Get("a")
	require.Equal(t, int32(24), before.ImportedChecksum())

	ok := e.Update("a", engine.Edit{ItemCode: "ITM1", InternalPrice: 10, Discount: 0, SalePrice: 40, Quantity: 3})
	require.True(t, ok)

	after, _ := e.Get("a")
	assert.Equal(t, int32(3), after.Quantity)
	assert.Equal(t, 120.0, after.RawTotal)
	assert.Equal(t, int32(25), after.CurrentChecksum)
	assert.Equal(t, int32(24), after.ImportedChecksum())
	assert.True(t, after.IsEdited())
	assert.Equal(t, 90.0, after.Profit)
	assert.True(t, after.Valid)

	// A full re-validation keeps the edited record valid.
	e.ValidateAll()
	after, _ = e.Get("a")
	assert.True(t, after.Valid)
}

func TestEngine_Update_Revalidates(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 10, 0, 20, 1, 20))
	e.ValidateAll()

	require.True(t, e.Update("a", engine.Edit{ItemCode: "BAD CODE", InternalPrice: 10, SalePrice: 20, Quantity: 1}))
	got, _ := e.Get("a")
	assert.False(t, got.Valid)

	require.True(t, e.Update("a", engine.Edit{ItemCode: "ITM1", InternalPrice: 50, SalePrice: 20, Quantity: 1}))
	got, _ = e.Get("a")
	assert.Equal(t, -30.0, got.Profit)
	assert.False(t, got.Valid)
}

func TestEngine_Update_RawTotalUsesDiscount(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 10, 0, 20, 1, 20))

	require.True(t, e.Update("a", engine.Edit{ItemCode: "ITM1", InternalPrice: 2.5, Discount: 50, SalePrice: 10, Quantity: 4}))

	got, _ := e.Get("a")
	assert.Equal(t, 20.0, got.RawTotal)
	assert.Equal(t, 10.0, got.Profit)
}

func TestEngine_Update_NotFound(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 10, 0, 20, 1, 20))

	assert.False(t, e.Update("missing", engine.Edit{ItemCode: "X", Quantity: 1}))

	got, _ := e.Get("a")
	assert.Equal(t, "ITM1", got.ItemCode)
}

func TestParseEdit(t *testing.T) {
	tests := []struct {
		name      string
		in        engine.EditInput
		want      engine.Edit
		wantField string
	}{
		{
			name: "valid input",
			in:   engine.EditInput{ItemCode: "ITM9", InternalPrice: " 1.5", Discount: "10", SalePrice: "3", Quantity: "4"},
			want: engine.Edit{ItemCode: "ITM9", InternalPrice: 1.5, Discount: 10, SalePrice: 3, Quantity: 4},
		},
		{
			name:      "bad internal price",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "abc", Discount: "0", SalePrice: "3", Quantity: "1"},
			wantField: "internal price",
		},
		{
			name:      "bad discount",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "1", Discount: "", SalePrice: "3", Quantity: "1"},
			wantField: "discount",
		},
		{
			name:      "bad sale price",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "1", Discount: "0", SalePrice: "3,5", Quantity: "1"},
			wantField: "sale price",
		},
		{
			name:      "fractional quantity",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "1", Discount: "0", SalePrice: "3", Quantity: "1.5"},
			wantField: "quantity",
		},
		{
			name:      "quantity with surrounding spaces",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "1", Discount: "0", SalePrice: "3", Quantity: " 3"},
			wantField: "quantity",
		},
		{
			name:      "lowercase infinity",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "inf", Discount: "0", SalePrice: "3", Quantity: "1"},
			wantField: "internal price",
		},
		{
			name:      "quantity out of range",
			in:        engine.EditInput{ItemCode: "ITM9", InternalPrice: "1", Discount: "0", SalePrice: "3", Quantity: "3000000000"},
			wantField: "quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ParseEdit(tt.in)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var inputErr *engine.InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.wantField, inputErr.Field)
		})
	}
}

func TestEngine_UpdateFromInput(t *testing.T) {
	e := newEngine(t, record("a", "ITM1", 10, 0, 20, 1, 20))
	e.ValidateAll()
	before, _ := e.Get("a")

	err := e.UpdateFromInput("a", engine.EditInput{ItemCode: "NEW", InternalPrice: "x", Discount: "0", SalePrice: "1", Quantity: "1"})
	var inputErr *engine.InputError
	require.ErrorAs(t, err, &inputErr)

	unchanged, _ := e.Get("a")
	assert.Equal(t, before, unchanged)

	err = e.UpdateFromInput("missing", engine.EditInput{ItemCode: "NEW", InternalPrice: "1", Discount: "0", SalePrice: "1", Quantity: "1"})
	assert.ErrorIs(t, err, engine.ErrTransactionNotFound)

	require.NoError(t, e.UpdateFromInput("a", engine.EditInput{ItemCode: "NEW", InternalPrice: "1", Discount: "0", SalePrice: "2", Quantity: "5"}))
	updated, _ := e.Get("a")
	assert.Equal(t, "NEW", updated.ItemCode)
	assert.Equal(t, int32(5), updated.Quantity)
}

func TestEngine_EndToEnd(t *testing.T) {
	content := "BillID,ItemCode,InternalPrice,Discount,SalePrice,Quantity,RawTotal,Checksum\n" +
		"B1,ITM1,10.00,0,20.00,1,20.00,24\n" +
		"B2,ITM2,2.50,50,10.00,2,10.00,24\n" +
		"B3,ITM3,oops,0,1,1,1,1\n"
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	e := engine.New(csvparser.NewFileLoader(), nil)
	require.NoError(t, e.Import(path))
	require.Equal(t, 2, e.Len())
	require.Len(t, e.LastImport().Skipped, 1)

	e.ValidateAll()

	assert.Equal(t, engine.Summary{Total: 2, Valid: 2, Invalid: 0}, e.Summary())
	listed := e.List()
	assert.Equal(t, 10.0, listed[0].Profit)
	assert.Equal(t, 5.0, listed[1].Profit)
	assert.InDelta(t, 3.0, e.CalculateFinalTax(20), 1e-9)

	assert.Equal(t, 0, e.DeleteZeroProfit())
	assert.Equal(t, 2, e.Len())
}
