package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

// ItemKey identifies a line item across round trips. It is derived from the
// item id so duplicate lines of the same product stay distinct.
type ItemKey string

// KeyFor returns the key of item.
func KeyFor(item *models.OrderLineItem) ItemKey {
	return ItemKey(item.ID.String())
}

// CartItem is the rule engine view of a line item. UnitPrice is the
// tax-exclusive price before rule discounts; AppliedDiscount is per unit.
type CartItem struct {
	Key             ItemKey         `json:"key"`
	ItemID          uuid.UUID       `json:"item_id"`
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	SKU             string          `json:"sku"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	AppliedDiscount decimal.Decimal `json:"applied_discount"`
	InBundle        bool            `json:"in_bundle"`
}

// LineTotal is the discounted, tax-exclusive line total.
func (c *CartItem) LineTotal() decimal.Decimal {
	return money.MulQty(c.UnitPrice.Sub(c.AppliedDiscount), c.Quantity)
}

// GrossTotal is the line total before any discount.
func (c *CartItem) GrossTotal() decimal.Decimal {
	return money.MulQty(c.UnitPrice, c.Quantity)
}

// ProjectCartItems builds one CartItem per line item, in order.
func ProjectCartItems(items []*models.OrderLineItem) []*CartItem {
	out := make([]*CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, &CartItem{
			Key:             KeyFor(item),
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			SKU:             item.SKU,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			AppliedDiscount: item.Discount,
			InBundle:        item.InBundle(),
		})
	}
	return out
}

// CartSubtotal sums the discounted line totals.
func CartSubtotal(items []*CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// GrossSubtotal sums the line totals before discounts.
func GrossSubtotal(items []*CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.GrossTotal())
	}
	return total
}

// DistributeFixedDiscount spreads amount over the items in proportion to
// their gross line totals and returns per-unit discounts. Each per-unit
// amount is rounded to cents and never exceeds the unit price, so the
// quantity-weighted sum may differ from amount by rounding.
func DistributeFixedDiscount(amount decimal.Decimal, items []*CartItem) map[ItemKey]decimal.Decimal {
	weights := make([]decimal.Decimal, len(items))
	for i, item := range items {
		weights[i] = item.GrossTotal()
	}
	shares := money.Allocate(amount, weights)

	out := make(map[ItemKey]decimal.Decimal, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			out[item.Key] = decimal.Zero
			continue
		}
		perUnit := money.Round(shares[i].Div(decimal.NewFromInt(int64(item.Quantity))))
		out[item.Key] = money.Min(money.ClampNonNegative(perUnit), item.UnitPrice)
	}
	return out
}
