package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

// Quote is the resolved catalog price of a product for one customer and
// quantity. Discount is ListPrice minus UnitPrice and is informational; the
// line item stores UnitPrice with no per-item discount.
type Quote struct {
	ListPrice  decimal.Decimal `json:"list_price"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Discount   decimal.Decimal `json:"discount"`
	GroupPrice bool            `json:"group_price"`
	TierMinQty *int            `json:"tier_min_qty,omitempty"`
}

// Pricing resolves customer group prices and quantity tiers.
type Pricing struct{}

func NewPricing() *Pricing {
	return &Pricing{}
}

// Quote prices quantity units of product for the customer group. A group
// price replaces the list price; the highest volume tier reached applies when
// it is cheaper than that.
func (p *Pricing) Quote(product *models.Product, quantity int, customerGroupID string) (Quote, error) {
	if product == nil {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if quantity <= 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	if product.Price.IsNegative() {
		return Quote{}, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s has a negative price", product.SKU)
	}

	list := money.Round(product.Price)
	quote := Quote{ListPrice: list, UnitPrice: list}

	if customerGroupID != "" {
		if price, ok := product.GroupPrices[customerGroupID]; ok && !price.IsNegative() {
			quote.UnitPrice = money.Round(price)
			quote.GroupPrice = true
		}
	}

	if tier := selectVolumeTier(quantity, product.VolumeTiers); tier != nil {
		price := money.Round(money.ClampNonNegative(tier.UnitPrice))
		if price.LessThan(quote.UnitPrice) {
			minQty := tier.MinQty
			quote.UnitPrice = price
			quote.TierMinQty = &minQty
		}
	}

	quote.Discount = money.ClampNonNegative(quote.ListPrice.Sub(quote.UnitPrice))
	return quote, nil
}

func selectVolumeTier(qty int, tiers types.VolumeTiers) *types.VolumeTier {
	var selected *types.VolumeTier
	for _, tier := range tiers.Sorted() {
		if tier.MinQty <= qty {
			t := tier
			selected = &t
		}
	}
	return selected
}
