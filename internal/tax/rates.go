package tax

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// RateTable applies one percentage rate per shipping country into a single
// named bucket. Tax is computed on the discounted unit price and rounded per
// unit; line and order tax are sums of those rounded parts.
type RateTable struct {
	rates           map[string]decimal.Decimal
	bucket          string
	shippingTaxable bool
}

func NewRateTable(rates map[string]decimal.Decimal, bucket string, shippingTaxable bool) *RateTable {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for country, rate := range rates {
		normalized[strings.ToUpper(strings.TrimSpace(country))] = rate
	}
	if bucket == "" {
		bucket = "sales_tax"
	}
	return &RateTable{rates: normalized, bucket: bucket, shippingTaxable: shippingTaxable}
}

func (r *RateTable) rateFor(address *types.Address) (decimal.Decimal, bool) {
	rate, ok := r.rates[strings.ToUpper(address.CountryCode())]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

func (r *RateTable) CalculateItemTaxes(_ context.Context, items []*models.OrderLineItem, address *types.Address, taxCtx pricing.TaxContext) (pricing.ItemTaxResult, error) {
	result := pricing.ItemTaxResult{
		Total:   decimal.Zero,
		Buckets: types.TaxBuckets{},
		PerItem: map[pricing.ItemKey]types.TaxBuckets{},
	}
	rate, ok := r.rateFor(address)
	if !ok || taxCtx.TaxExempt {
		return result, nil
	}

	lineTotal := decimal.Zero
	for _, item := range items {
		net := money.ClampNonNegative(item.UnitPrice.Sub(item.Discount))
		perUnit := money.Round(net.Mul(rate).Div(hundred))
		result.PerItem[pricing.KeyFor(item)] = types.TaxBuckets{r.bucket: perUnit}
		lineTotal = lineTotal.Add(money.MulQty(perUnit, item.Quantity))
	}
	result.Total = lineTotal
	result.Buckets[r.bucket] = lineTotal
	return result, nil
}

func (r *RateTable) CalculateShippingTaxes(_ context.Context, _ uuid.UUID, address *types.Address, quote decimal.Decimal) (types.TaxBuckets, error) {
	rate, ok := r.rateFor(address)
	if !ok || !r.shippingTaxable || !quote.IsPositive() {
		return types.TaxBuckets{}, nil
	}
	return types.TaxBuckets{r.bucket: money.Round(quote.Mul(rate).Div(hundred))}, nil
}
