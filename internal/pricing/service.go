package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionStore interface {
	sessionSource
	Discard(ctx context.Context, key string) error
}

// ServiceParams wires the pricing service.
type ServiceParams struct {
	Tx       txRunner
	Repo     orders.Repository
	Sessions sessionStore
	Shipping ShippingOptionProvider
	Tax      TaxEngine
	Rules    CartRuleEngine
	Logger   *logger.Logger
	Metrics  *metrics.PricingMetrics
}

// Service is the entry point for order repricing. Every call is synchronous
// and request scoped; record locking is the caller's concern.
type Service struct {
	tx       txRunner
	repo     orders.Repository
	sessions sessionStore
	calc     *Calculator
	rules    CartRuleEngine
	logg     *logger.Logger
	metrics  *metrics.PricingMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, errors.New("tx runner required")
	}
	if params.Repo == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if params.Rules == nil {
		return nil, errors.New("cart rule engine required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	calc, err := NewCalculator(CalculatorParams{
		Items:    params.Repo,
		Sessions: params.Sessions,
		Shipping: params.Shipping,
		Tax:      params.Tax,
		Logger:   logg,
		Metrics:  params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Service{
		tx:       params.Tx,
		repo:     params.Repo,
		sessions: params.Sessions,
		calc:     calc,
		rules:    params.Rules,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

// Calculator exposes the totals calculator the service runs.
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// RecalcInput selects what one repricing pass works on. ManualDiscounts, or
// the decoded DiscountsToken when ManualDiscounts is nil, replace rule
// discounts for the items they name.
type RecalcInput struct {
	Order               *models.Order
	SessionKey          string
	Persist             bool
	SkipShippingRequote bool
	ManualDiscounts     *DiscountMap
	DiscountsToken      string
}

// RecalcResult is everything a caller needs to render the repriced order.
type RecalcResult struct {
	Items          []*models.OrderLineItem `json:"items"`
	CartItems      []*CartItem             `json:"cart_items"`
	Discounts      DiscountResult          `json:"discounts"`
	Subtotal       decimal.Decimal         `json:"subtotal"`
	Order          *models.Order           `json:"order"`
	Totals         TotalsResult            `json:"totals"`
	DiscountsToken string                  `json:"discounts_token,omitempty"`
}

type references struct {
	payment  *models.PaymentMethod
	shipping *models.ShippingMethod
	coupon   *models.Coupon
	customer *models.Customer
}

// LoadOrder fetches an order by id.
func (s *Service) LoadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// LoadCustomer returns the order's customer, or nil when none is set.
func (s *Service) LoadCustomer(ctx context.Context, order *models.Order) (*models.Customer, error) {
	if order.CustomerID == nil {
		return nil, nil
	}
	customer, err := s.repo.FindCustomer(ctx, *order.CustomerID)
	if err != nil {
		return nil, referenceError(err, "customer")
	}
	return customer, nil
}

// RecalcOrderDiscounts reprices the order: totals, cart rules, discount
// write-back, free shipping, and a final totals pass folding the discounts
// into tax. With Persist the order and its items are saved in one
// transaction and the deferred session is discarded afterwards. Collaborator
// failures abort the call before anything is written.
func (s *Service) RecalcOrderDiscounts(ctx context.Context, in RecalcInput) (result RecalcResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Track(metrics.OpRecalcDiscounts, start, err) }()

	order := in.Order
	if order == nil {
		return RecalcResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	ctx = s.logg.WithSessionKey(s.logg.WithOrderID(ctx, order.ID.String()), in.SessionKey)

	if in.Persist && !order.Editable() {
		return RecalcResult{}, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s cannot be changed", order.Status)
	}

	items, err := s.calc.resolveItems(ctx, order, TotalsOptions{SessionKey: in.SessionKey})
	if err != nil {
		return RecalcResult{}, err
	}

	manual := in.ManualDiscounts
	if manual == nil && in.DiscountsToken != "" {
		writeBack, err := s.ApplyEncodedItemDiscounts(ctx, items, in.DiscountsToken, false)
		if err != nil {
			return RecalcResult{}, err
		}
		manual = writeBack.Discounts
	}
	// manual discounts and the coupon are mutually exclusive
	if manual.Len() > 0 {
		order.CouponID = nil
	}

	refs, err := s.resolveReferences(ctx, order)
	if err != nil {
		return RecalcResult{}, err
	}

	totals, err := s.calc.ComputeTotals(ctx, order, TotalsOptions{
		Items:                 items,
		SessionKey:            in.SessionKey,
		ItemDiscountOverrides: manual,
		SkipShippingRequote:   in.SkipShippingRequote,
		Customer:              refs.customer,
	})
	if err != nil {
		return RecalcResult{}, err
	}
	items = totals.Items

	cart := ProjectCartItems(items)
	subtotal := CartSubtotal(cart)
	if !subtotal.Equal(totals.Subtotal) {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"cart_subtotal":   subtotal.StringFixed(money.Places),
			"totals_subtotal": totals.Subtotal.StringFixed(money.Places),
		}), "pricing.subtotal_mismatch")
		s.metrics.IncEvent(metrics.EventSubtotalMismatch)
	}

	couponCode := ""
	if refs.coupon != nil {
		couponCode = refs.coupon.Code
	}
	discounts, err := s.rules.Evaluate(ctx, CartRuleInput{
		PaymentMethod:  refs.payment,
		ShippingMethod: refs.shipping,
		Items:          cart,
		Address:        order.ShippingAddress,
		CouponCode:     couponCode,
		Customer:       refs.customer,
		Subtotal:       subtotal,
	})
	if err != nil {
		return RecalcResult{}, dependencyError(err, "evaluate cart rules")
	}
	s.checkCartDiscount(ctx, items, discounts)

	order.Discount = decimal.Zero
	for i, item := range items {
		d := discounts.ItemDiscount(cart[i].Key)
		if m, ok := manual.Get(cart[i].Key); ok {
			d = m
		}
		item.SetDiscount(d)
		cart[i].AppliedDiscount = item.Discount
		order.Discount = order.Discount.Add(money.MulQty(item.Discount, item.Quantity))
	}

	wasFree := order.FreeShipping
	optionID := orderShippingOptionID(order.ShippingMethodID, order.ShippingSubOption)
	order.FreeShipping = order.HasShippingMethod() && discounts.GrantsFreeShipping(*order.ShippingMethodID, optionID)
	if order.FreeShipping && !wasFree {
		s.metrics.IncEvent(metrics.EventFreeShippingGrant)
	}

	totals, err = s.calc.ComputeTotals(ctx, order, TotalsOptions{
		Items:               items,
		SkipShippingRequote: in.SkipShippingRequote && wasFree == order.FreeShipping,
		Customer:            refs.customer,
	})
	if err != nil {
		return RecalcResult{}, err
	}
	order.AppliedRules = append(types.AppliedRules(nil), discounts.AppliedRules...)

	if in.Persist {
		if err := ValidateForSave(order, totals); err != nil {
			return RecalcResult{}, err
		}
		if err := s.persist(ctx, order, items, in.SessionKey); err != nil {
			return RecalcResult{}, err
		}
	}

	token := ""
	if manual.Len() > 0 {
		if token, err = manual.Encode(); err != nil {
			return RecalcResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode discounts")
		}
	}

	return RecalcResult{
		Items:          items,
		CartItems:      cart,
		Discounts:      discounts,
		Subtotal:       CartSubtotal(cart),
		Order:          order,
		Totals:         totals,
		DiscountsToken: token,
	}, nil
}

func (s *Service) resolveReferences(ctx context.Context, order *models.Order) (references, error) {
	var refs references
	var err error

	if order.PaymentMethodID != nil {
		if refs.payment, err = s.repo.FindPaymentMethod(ctx, *order.PaymentMethodID); err != nil {
			return references{}, referenceError(err, "payment method")
		}
	}
	if order.HasShippingMethod() {
		if refs.shipping, err = s.repo.FindShippingMethod(ctx, *order.ShippingMethodID); err != nil {
			return references{}, referenceError(err, "shipping method")
		}
	}
	if order.CouponID != nil {
		if refs.coupon, err = s.repo.FindCoupon(ctx, *order.CouponID); err != nil {
			return references{}, referenceError(err, "coupon")
		}
	}
	if refs.customer, err = s.LoadCustomer(ctx, order); err != nil {
		return references{}, err
	}
	return refs, nil
}

// checkCartDiscount compares the rule engine's aggregate with its per-item
// figures. Bundles may carry discounts that are not item scoped, so only
// bundle-free carts are checked. The per-item figures always win.
func (s *Service) checkCartDiscount(ctx context.Context, items []*models.OrderLineItem, discounts DiscountResult) {
	perItem := decimal.Zero
	for _, item := range items {
		if item.InBundle() {
			return
		}
		perItem = perItem.Add(money.MulQty(discounts.ItemDiscount(KeyFor(item)), item.Quantity))
	}
	if perItem.Equal(money.Round(discounts.CartDiscount)) {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"cart_discount":     discounts.CartDiscount.StringFixed(money.Places),
		"item_discount_sum": perItem.StringFixed(money.Places),
	}), "pricing.discount_mismatch")
	s.metrics.IncEvent(metrics.EventDiscountMismatch)
}

func (s *Service) persist(ctx context.Context, order *models.Order, items []*models.OrderLineItem, sessionKey string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockOrder(ctx, order.ID)
		if err != nil {
			return referenceError(err, "order")
		}
		if !current.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s can no longer be changed", current.Status)
		}
		if sessionKey != "" {
			if err := repo.ReplaceItems(ctx, order.ID, items); err != nil {
				return err
			}
		} else {
			for _, item := range items {
				if err := repo.SaveItem(ctx, item); err != nil {
					return err
				}
			}
		}
		return repo.SaveOrder(ctx, order)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}

	if sessionKey != "" {
		if err := s.sessions.Discard(ctx, sessionKey); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "pricing.session_discard_failed")
		}
	}
	s.metrics.IncEvent(metrics.EventOrderPersisted)
	s.logg.Info(s.logg.WithField(ctx, "total", order.Total.StringFixed(money.Places)), "pricing.order_persisted")
	return nil
}

func referenceError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
