package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

type itemSource interface {
	ListItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLineItem, error)
}

type sessionSource interface {
	SessionItems(ctx context.Context, key string, orderID uuid.UUID) ([]*models.OrderLineItem, error)
}

// TotalsOptions tunes one ComputeTotals pass. Items wins over SessionKey,
// which wins over persisted items.
type TotalsOptions struct {
	Items                 []*models.OrderLineItem
	SessionKey            string
	ItemDiscountOverrides *DiscountMap
	SkipShippingRequote   bool
	Customer              *models.Customer
}

// TotalsResult mirrors the derived order fields written by ComputeTotals.
type TotalsResult struct {
	Items                   []*models.OrderLineItem `json:"items"`
	Shipping                *ShippingQuoteCandidate `json:"shipping,omitempty"`
	ShippingRequoted        bool                    `json:"shipping_requoted"`
	Subtotal                decimal.Decimal         `json:"subtotal"`
	SubtotalBeforeDiscounts decimal.Decimal         `json:"subtotal_before_discounts"`
	Discount                decimal.Decimal         `json:"discount"`
	TotalCost               decimal.Decimal         `json:"total_cost"`
	GoodsTax                decimal.Decimal         `json:"goods_tax"`
	TaxBreakdown            types.TaxBuckets        `json:"tax_breakdown"`
	ShippingQuote           decimal.Decimal         `json:"shipping_quote"`
	ShippingDiscount        decimal.Decimal         `json:"shipping_discount"`
	ShippingTax             decimal.Decimal         `json:"shipping_tax"`
	Total                   decimal.Decimal         `json:"total"`
}

// CalculatorParams wires a Calculator.
type CalculatorParams struct {
	Items    itemSource
	Sessions sessionSource
	Shipping ShippingOptionProvider
	Tax      TaxEngine
	Logger   *logger.Logger
	Metrics  *metrics.PricingMetrics
}

// Calculator recomputes the derived money fields of an order.
type Calculator struct {
	items    itemSource
	sessions sessionSource
	shipping ShippingOptionProvider
	tax      TaxEngine
	logg     *logger.Logger
	metrics  *metrics.PricingMetrics
}

func NewCalculator(params CalculatorParams) (*Calculator, error) {
	if params.Items == nil {
		return nil, errors.New("item source required")
	}
	if params.Sessions == nil {
		return nil, errors.New("session source required")
	}
	if params.Shipping == nil {
		return nil, errors.New("shipping option provider required")
	}
	if params.Tax == nil {
		return nil, errors.New("tax engine required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Calculator{
		items:    params.Items,
		sessions: params.Sessions,
		shipping: params.Shipping,
		tax:      params.Tax,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

// ComputeTotals recomputes subtotal, discount, cost, taxes, shipping and total
// on order in place and returns the same figures. Items are updated with the
// override discounts and their per-unit tax breakdown. Nothing is persisted.
func (c *Calculator) ComputeTotals(ctx context.Context, order *models.Order, opts TotalsOptions) (result TotalsResult, err error) {
	start := time.Now()
	defer func() { c.metrics.Track(metrics.OpComputeTotals, start, err) }()

	if order == nil {
		return TotalsResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	ctx = c.logg.WithOrderID(ctx, order.ID.String())

	items, err := c.resolveItems(ctx, order, opts)
	if err != nil {
		return TotalsResult{}, err
	}
	result.Items = items

	order.GoodsTax = decimal.Zero
	order.TotalCost = decimal.Zero
	order.Discount = decimal.Zero
	order.Subtotal = decimal.Zero
	order.SubtotalBeforeDiscounts = decimal.Zero
	order.TaxBreakdown = nil

	if !opts.SkipShippingRequote && order.HasShippingMethod() && order.Country() != "" {
		result.ShippingRequoted = true
		candidate, err := c.requoteShipping(ctx, order, items, opts.SessionKey)
		if err != nil {
			return TotalsResult{}, err
		}
		result.Shipping = candidate
	}

	if opts.ItemDiscountOverrides != nil {
		ApplyItemDiscounts(items, opts.ItemDiscountOverrides)
	}

	for _, item := range items {
		order.Discount = order.Discount.Add(money.MulQty(item.Discount, item.Quantity))
		order.Subtotal = order.Subtotal.Add(item.LineTotal())
		order.SubtotalBeforeDiscounts = order.SubtotalBeforeDiscounts.Add(item.GrossTotal())
		order.TotalCost = order.TotalCost.Add(money.MulQty(item.Cost, item.Quantity))
	}

	taxExempt := order.TaxExempt || (opts.Customer != nil && opts.Customer.TaxExempt)
	if order.Country() != "" {
		taxes, err := c.tax.CalculateItemTaxes(ctx, items, order.ShippingAddress, TaxContext{TaxExempt: taxExempt, Customer: opts.Customer})
		if err != nil {
			return TotalsResult{}, dependencyError(err, "calculate item taxes")
		}
		order.GoodsTax = money.Round(taxes.Total)
		order.TaxBreakdown = taxes.Buckets.Clone()
		for _, item := range items {
			item.TaxBreakdown = taxes.PerItem[KeyFor(item)].Clone()
		}
	} else {
		for _, item := range items {
			item.TaxBreakdown = nil
		}
	}

	switch {
	case order.FreeShipping || !order.HasShippingMethod():
		order.ResetShipping()
	case taxExempt:
		order.ShippingTax = decimal.Zero
		order.ShippingTaxBreakdown = nil
	default:
		taxable := money.ClampNonNegative(order.ShippingQuote.Sub(order.ShippingDiscount))
		buckets, err := c.tax.CalculateShippingTaxes(ctx, *order.ShippingMethodID, order.ShippingAddress, taxable)
		if err != nil {
			return TotalsResult{}, dependencyError(err, "calculate shipping taxes")
		}
		order.ShippingTaxBreakdown = buckets.Clone()
		order.ShippingTax = money.Round(buckets.Total())
	}

	order.Total = order.SubtotalBeforeDiscounts.
		Sub(order.Discount).
		Add(order.GoodsTax).
		Add(order.ShippingQuote).
		Sub(order.ShippingDiscount).
		Add(order.ShippingTax)

	result.Subtotal = order.Subtotal
	result.SubtotalBeforeDiscounts = order.SubtotalBeforeDiscounts
	result.Discount = order.Discount
	result.TotalCost = order.TotalCost
	result.GoodsTax = order.GoodsTax
	result.TaxBreakdown = order.TaxBreakdown.Clone()
	result.ShippingQuote = order.ShippingQuote
	result.ShippingDiscount = order.ShippingDiscount
	result.ShippingTax = order.ShippingTax
	result.Total = order.Total

	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
		"items": len(items),
		"total": order.Total.StringFixed(money.Places),
	}), "pricing.totals_computed")
	return result, nil
}

func (c *Calculator) resolveItems(ctx context.Context, order *models.Order, opts TotalsOptions) ([]*models.OrderLineItem, error) {
	if opts.Items != nil {
		return opts.Items, nil
	}
	if opts.SessionKey != "" {
		return c.sessions.SessionItems(ctx, opts.SessionKey, order.ID)
	}
	items, err := c.items.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return items, nil
}

// requoteShipping resets the shipping fields and copies the matching
// candidate onto the order. No match leaves the quote at zero.
func (c *Calculator) requoteShipping(ctx context.Context, order *models.Order, items []*models.OrderLineItem, sessionKey string) (*ShippingQuoteCandidate, error) {
	order.ResetShipping()
	order.ShippingSubOptionLabel = ""

	candidates, err := c.shipping.ListQuotes(ctx, ShippingRequest{
		Order:      order,
		Items:      items,
		Address:    order.ShippingAddress,
		SessionKey: sessionKey,
	})
	if err != nil {
		return nil, dependencyError(err, "list shipping quotes")
	}

	match, ok := MatchShippingCandidate(candidates, *order.ShippingMethodID, order.ShippingSubOption)
	if !ok {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"shipping_method_id": order.ShippingMethodID.String(),
			"country":            order.Country(),
			"candidates":         len(candidates),
		}), "pricing.shipping_unmatched")
		c.metrics.IncEvent(metrics.EventShippingUnmatched)
		return nil, nil
	}

	quote := money.Round(money.ClampNonNegative(match.Quote))
	order.ShippingQuote = quote
	order.ShippingDiscount = money.Min(money.Round(money.ClampNonNegative(match.Discount)), quote)
	order.ShippingSubOptionLabel = match.SubOptionLabel
	return match, nil
}

// dependencyError keeps typed errors from collaborators and wraps the rest.
func dependencyError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
