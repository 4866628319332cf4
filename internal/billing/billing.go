// Package billing computes bill totals with decimal arithmetic so amounts
// stored offline match what the server would compute.
package billing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// Bill record fields read and written by Apply.
const (
	FieldItems       = "items"
	FieldQuantity    = "quantity"
	FieldRate        = "rate"
	FieldAmount      = "amount"
	FieldDiscount    = "discount"
	FieldVATRate     = "vat_rate"
	FieldSubtotal    = "subtotal"
	FieldVATAmount   = "vat_amount"
	FieldTotalAmount = "total_amount"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one product line of a bill.
type LineItem struct {
	Quantity decimal.Decimal
	Rate     decimal.Decimal
}

// Amount returns quantity times rate.
func (li LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.Rate)
}

// Totals are the computed amounts of a bill, rounded to two places.
type Totals struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	VATRate   decimal.Decimal
	VATAmount decimal.Decimal
	Total     decimal.Decimal
}

// Compute sums the items, subtracts the discount and adds VAT at vatRate
// percent. The discount never takes the taxable amount below zero.
func Compute(items []LineItem, discount, vatRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	vat := taxable.Mul(vatRate).Div(hundred).Round(2)

	return Totals{
		Subtotal:  subtotal.Round(2),
		Discount:  discount.Round(2),
		VATRate:   vatRate,
		VATAmount: vat,
		Total:     taxable.Add(vat).Round(2),
	}
}

// ItemsFromRecord reads the line items of a bill record.
func ItemsFromRecord(rec models.Record) ([]LineItem, error) {
	raw, ok := rec[FieldItems]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "bill items must be a list, got %T", raw)
	}

	items := make([]LineItem, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrInvalid, "bill item %d must be an object", i)
		}
		qty, err := toDecimal(m[FieldQuantity])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("bill item %d quantity", i), err)
		}
		rate, err := toDecimal(m[FieldRate])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("bill item %d rate", i), err)
		}
		items = append(items, LineItem{Quantity: qty, Rate: rate})
	}
	return items, nil
}

// Apply returns a copy of the bill with per-item amounts and totals filled
// in. A vat_rate on the bill overrides defaultVAT. Amounts are written as
// two-decimal strings.
func Apply(rec models.Record, defaultVAT decimal.Decimal) (models.Record, error) {
	items, err := ItemsFromRecord(rec)
	if err != nil {
		return nil, err
	}
	discount, err := toDecimal(rec[FieldDiscount])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "bill discount", err)
	}
	vatRate := defaultVAT
	if v, ok := rec[FieldVATRate]; ok && v != nil {
		if vatRate, err = toDecimal(v); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "bill vat rate", err)
		}
	}

	totals := Compute(items, discount, vatRate)

	out := rec.Clone()
	if list, ok := rec[FieldItems].([]interface{}); ok {
		copied := make([]interface{}, len(list))
		for i, entry := range list {
			m := entry.(map[string]interface{})
			line := make(map[string]interface{}, len(m)+1)
			for k, v := range m {
				line[k] = v
			}
			line[FieldAmount] = items[i].Amount().StringFixed(2)
			copied[i] = line
		}
		out[FieldItems] = copied
	}
	out[FieldVATRate] = totals.VATRate.String()
	out[FieldSubtotal] = totals.Subtotal.StringFixed(2)
	out[FieldVATAmount] = totals.VATAmount.StringFixed(2)
	out[FieldTotalAmount] = totals.Total.StringFixed(2)
	return out, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		if n == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric value %T", v)
	}
}
