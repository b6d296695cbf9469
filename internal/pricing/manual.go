package pricing

import (
	"context"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

var manualDiscountPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(%?)\s*$`)

var hundred = decimal.NewFromInt(100)

// ManualDiscountResult is the outcome of a manual discount. Token carries
// Discounts across round trips.
type ManualDiscountResult struct {
	Discounts *DiscountMap    `json:"-"`
	Token     string          `json:"discounts_token"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Requested decimal.Decimal `json:"requested"`
	Applied   decimal.Decimal `json:"applied"`
	Percent   bool            `json:"percent"`
}

// ApplyManualDiscount parses raw as an amount ("12.50") or a percentage
// ("10%") of the undiscounted subtotal, spreads it over items in proportion to
// their line totals and writes the per-unit results onto items. The manual
// discount replaces rule discounts, so the order's coupon is cleared.
func (s *Service) ApplyManualDiscount(ctx context.Context, order *models.Order, items []*models.OrderLineItem, raw string) (result ManualDiscountResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Track(metrics.OpManualDiscount, start, err) }()

	if order == nil {
		return ManualDiscountResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if !order.Editable() {
		return ManualDiscountResult{}, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s cannot be changed", order.Status)
	}

	match := manualDiscountPattern.FindStringSubmatch(raw)
	if match == nil {
		return ManualDiscountResult{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be a non-negative amount or percentage, e.g. 10 or 10%")
	}
	value, err := money.Parse(match[1])
	if err != nil {
		return ManualDiscountResult{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be a non-negative amount or percentage, e.g. 10 or 10%")
	}
	percent := match[2] == "%"

	cart := ProjectCartItems(items)
	for _, c := range cart {
		c.AppliedDiscount = decimal.Zero
	}
	subtotal := GrossSubtotal(cart)

	amount := money.Round(value)
	if percent {
		if value.GreaterThan(hundred) {
			return ManualDiscountResult{}, pkgerrors.New(pkgerrors.CodeValidation, "discount percentage cannot exceed 100%")
		}
		amount = money.Round(value.Div(hundred).Mul(subtotal))
	} else if amount.GreaterThan(subtotal) {
		return ManualDiscountResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "discount cannot exceed the order subtotal of %s", subtotal.StringFixed(money.Places))
	}

	discounts := NewDiscountMap()
	for key, perUnit := range DistributeFixedDiscount(amount, cart) {
		discounts.Set(key, perUnit)
	}
	ApplyItemDiscounts(items, discounts)

	token, err := discounts.Encode()
	if err != nil {
		return ManualDiscountResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode discounts")
	}

	order.CouponID = nil

	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"requested": amount.StringFixed(money.Places),
		"percent":   percent,
	}), "pricing.manual_discount_applied")

	return ManualDiscountResult{
		Discounts: discounts,
		Token:     token,
		Subtotal:  subtotal,
		Requested: amount,
		Applied:   discounts.WeightedTotal(items),
		Percent:   percent,
	}, nil
}
