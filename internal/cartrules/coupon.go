package cartrules

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

var (
	// ErrNotEligible is reported through Eligibility when a coupon cannot apply.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrCouponInactive covers disabled coupons and dates outside the window.
	ErrCouponInactive = errors.New("coupon not active")
	// ErrMinimumSubtotalUnmet indicates the cart is below the coupon minimum.
	ErrMinimumSubtotalUnmet = errors.New("coupon minimum subtotal not met")
)

var hundred = decimal.NewFromInt(100)

type couponFinder interface {
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// CouponEngine applies at most one coupon per cart. Ineligible coupons yield
// an empty result rather than an error.
type CouponEngine struct {
	coupons couponFinder
	now     func() time.Time
}

func NewCouponEngine(coupons couponFinder) *CouponEngine {
	return &CouponEngine{coupons: coupons, now: time.Now}
}

// Eligibility checks the active flag, the date window and the minimum
// subtotal against the gross cart subtotal.
func Eligibility(coupon *models.Coupon, now time.Time, grossSubtotal decimal.Decimal) error {
	if coupon == nil {
		return ErrNotEligible
	}
	if !coupon.Active {
		return ErrCouponInactive
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return ErrCouponInactive
	}
	if coupon.EndsAt != nil && now.After(*coupon.EndsAt) {
		return ErrCouponInactive
	}
	if grossSubtotal.LessThan(coupon.MinSubtotal) {
		return ErrMinimumSubtotalUnmet
	}
	return nil
}

func (e *CouponEngine) Evaluate(ctx context.Context, in pricing.CartRuleInput) (pricing.DiscountResult, error) {
	result := pricing.DiscountResult{
		CartDiscount:  decimal.Zero,
		ItemDiscounts: map[pricing.ItemKey]decimal.Decimal{},
	}

	code := strings.TrimSpace(in.CouponCode)
	if code == "" {
		return result, nil
	}
	coupon, err := e.coupons.FindCouponByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return pricing.DiscountResult{}, err
	}

	gross := pricing.GrossSubtotal(in.Items)
	if Eligibility(coupon, e.now(), gross) != nil {
		return result, nil
	}

	switch coupon.Kind {
	case models.CouponKindPercentage:
		pct := money.Min(money.ClampNonNegative(coupon.Amount), hundred)
		for _, item := range in.Items {
			perUnit := money.Min(money.Round(item.UnitPrice.Mul(pct).Div(hundred)), item.UnitPrice)
			result.ItemDiscounts[item.Key] = perUnit
			result.CartDiscount = result.CartDiscount.Add(money.MulQty(perUnit, item.Quantity))
		}
	case models.CouponKindFixedCart:
		amount := money.Min(money.Round(money.ClampNonNegative(coupon.Amount)), gross)
		result.ItemDiscounts = pricing.DistributeFixedDiscount(amount, in.Items)
		result.CartDiscount = amount
	case models.CouponKindFreeShipping:
		result.FreeShipping = freeShippingTargets(coupon, in.ShippingMethod)
	default:
		return result, nil
	}

	result.AppliedRules = types.AppliedRules{{
		ID:     coupon.ID.String(),
		Name:   coupon.Name,
		Kind:   coupon.Kind,
		Amount: result.CartDiscount,
	}}
	return result, nil
}

// freeShippingTargets lists the option or method ids the coupon waives. An
// unrestricted coupon covers the selected method.
func freeShippingTargets(coupon *models.Coupon, selected *models.ShippingMethod) types.StringList {
	if len(coupon.ShippingMethodIDs) > 0 {
		return append(types.StringList(nil), coupon.ShippingMethodIDs...)
	}
	if selected == nil {
		return nil
	}
	return types.StringList{selected.ID.String()}
}
