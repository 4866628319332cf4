package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		items     []LineItem
		discount  string
		vat       string
		subtotal  string
		vatAmount string
		total     string
	}{
		{
			name:      "no items",
			discount:  "0",
			vat:       "5",
			subtotal:  "0.00",
			vatAmount: "0.00",
			total:     "0.00",
		},
		{
			name: "vat on discounted subtotal",
			items: []LineItem{
				{Quantity: d("2"), Rate: d("45.50")},
				{Quantity: d("1"), Rate: d("120")},
			},
			discount:  "11",
			vat:       "5",
			subtotal:  "211.00",
			vatAmount: "10.00",
			total:     "210.00",
		},
		{
			name:      "rounds half cents",
			items:     []LineItem{{Quantity: d("3"), Rate: d("0.335")}},
			discount:  "0",
			vat:       "5",
			subtotal:  "1.01",
			vatAmount: "0.05",
			total:     "1.06",
		},
		{
			name:      "discount larger than subtotal",
			items:     []LineItem{{Quantity: d("1"), Rate: d("10")}},
			discount:  "25",
			vat:       "5",
			subtotal:  "10.00",
			vatAmount: "0.00",
			total:     "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.items, d(tt.discount), d(tt.vat))
			assert.Equal(t, tt.subtotal, got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.vatAmount, got.VATAmount.StringFixed(2))
			assert.Equal(t, tt.total, got.Total.StringFixed(2))
		})
	}
}

func TestApply_fillsTotals(t *testing.T) {
	bill := models.Record{
		"customer_id": "C1",
		"items": []interface{}{
			map[string]interface{}{"product_id": "P1", "quantity": 2.0, "rate": 10.0},
			map[string]interface{}{"product_id": "P2", "quantity": "1", "rate": "30.25"},
		},
		"discount": 0.25,
	}

	out, err := Apply(bill, d("5"))
	require.NoError(t, err)

	assert.Equal(t, "50.25", out[FieldSubtotal])
	assert.Equal(t, "2.50", out[FieldVATAmount])
	assert.Equal(t, "52.50", out[FieldTotalAmount])
	assert.Equal(t, "5", out[FieldVATRate])

	items := out[FieldItems].([]interface{})
	assert.Equal(t, "20.00", items[0].(map[string]interface{})[FieldAmount])
	assert.Equal(t, "30.25", items[1].(map[string]interface{})[FieldAmount])

	// The input is left untouched.
	assert.NotContains(t, bill, FieldSubtotal)
	assert.NotContains(t, bill["items"].([]interface{})[0], FieldAmount)
}

func TestApply_billVATOverridesDefault(t *testing.T) {
	bill := models.Record{
		"items":    []interface{}{map[string]interface{}{"quantity": 1.0, "rate": 100.0}},
		"vat_rate": "0",
	}

	out, err := Apply(bill, d("5"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", out[FieldVATAmount])
	assert.Equal(t, "100.00", out[FieldTotalAmount])
}

func TestApply_withoutItems(t *testing.T) {
	out, err := Apply(models.Record{"customer_id": "C1"}, d("5"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", out[FieldTotalAmount])
}

func TestApply_rejectsMalformedItems(t *testing.T) {
	cases := []models.Record{
		{"items": "two shirts"},
		{"items": []interface{}{"shirt"}},
		{"items": []interface{}{map[string]interface{}{"quantity": "two", "rate": 1.0}}},
		{"items": []interface{}{map[string]interface{}{"quantity": 1.0, "rate": true}}},
		{"discount": "lots"},
	}
	for _, rec := range cases {
		_, err := Apply(rec, d("5"))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalid), "%v", rec)
	}
}
