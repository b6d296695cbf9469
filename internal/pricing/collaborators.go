package pricing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

// ShippingRequest carries what a shipping provider needs to quote an order.
// Items are the resolved item set of the current pass, which may come from a
// deferred session rather than storage.
type ShippingRequest struct {
	Order      *models.Order
	Items      []*models.OrderLineItem
	Address    *types.Address
	SessionKey string
}

// ShippingQuoteCandidate is one currently quotable shipping method or
// sub-option. Quote and Discount are tax-exclusive.
type ShippingQuoteCandidate struct {
	MethodID       uuid.UUID       `json:"method_id"`
	SubOptionID    string          `json:"sub_option_id,omitempty"`
	SubOptionLabel string          `json:"sub_option_label,omitempty"`
	Quote          decimal.Decimal `json:"quote"`
	Discount       decimal.Decimal `json:"discount"`
	MultiOption    bool            `json:"multi_option"`
}

// OptionID is the identifier rule engines use to grant free shipping on this
// candidate.
func (c ShippingQuoteCandidate) OptionID() string {
	if !c.MultiOption {
		return ShippingOptionID(c.MethodID, "")
	}
	return ShippingOptionID(c.MethodID, c.SubOptionID)
}

// ShippingOptionProvider lists the shipping candidates quotable for an order.
type ShippingOptionProvider interface {
	ListQuotes(ctx context.Context, req ShippingRequest) ([]ShippingQuoteCandidate, error)
}

// TaxContext holds the flags that change how goods are taxed.
type TaxContext struct {
	TaxExempt bool
	Customer  *models.Customer
}

// ItemTaxResult is the tax engine answer for a set of items. PerItem holds
// per-unit buckets keyed by item.
type ItemTaxResult struct {
	Total   decimal.Decimal
	Buckets types.TaxBuckets
	PerItem map[ItemKey]types.TaxBuckets
}

// TaxEngine computes sales tax on goods and shipping.
type TaxEngine interface {
	CalculateItemTaxes(ctx context.Context, items []*models.OrderLineItem, address *types.Address, taxCtx TaxContext) (ItemTaxResult, error)
	CalculateShippingTaxes(ctx context.Context, shippingMethodID uuid.UUID, address *types.Address, quote decimal.Decimal) (types.TaxBuckets, error)
}

// CartRuleInput is everything a cart rule engine may match promotions on.
type CartRuleInput struct {
	PaymentMethod  *models.PaymentMethod
	ShippingMethod *models.ShippingMethod
	Items          []*CartItem
	Address        *types.Address
	CouponCode     string
	Customer       *models.Customer
	Subtotal       decimal.Decimal
}

// CartRuleEngine decides which promotions apply to a cart.
type CartRuleEngine interface {
	Evaluate(ctx context.Context, in CartRuleInput) (DiscountResult, error)
}

// DiscountResult is the decision of a cart rule engine for one pass.
// ItemDiscounts are per-unit amounts keyed by cart item; FreeShipping holds
// shipping option or method ids. Treat it as read-only once returned.
type DiscountResult struct {
	CartDiscount  decimal.Decimal             `json:"cart_discount"`
	FreeShipping  types.StringList            `json:"free_shipping"`
	AppliedRules  types.AppliedRules          `json:"applied_rules"`
	ItemDiscounts map[ItemKey]decimal.Decimal `json:"item_discounts"`
}

// ItemDiscount returns the per-unit discount for key, or zero.
func (r DiscountResult) ItemDiscount(key ItemKey) decimal.Decimal {
	if d, ok := r.ItemDiscounts[key]; ok {
		return d
	}
	return decimal.Zero
}

// GrantsFreeShipping reports whether the result waives shipping for the
// option or for its whole method.
func (r DiscountResult) GrantsFreeShipping(methodID uuid.UUID, optionID string) bool {
	if methodID == uuid.Nil {
		return false
	}
	return r.FreeShipping.Contains(optionID) || r.FreeShipping.Contains(methodID.String())
}
