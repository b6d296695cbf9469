package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

const (
	OrderStatusDraft     = "draft"
	OrderStatusOpen      = "open"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order is the aggregate root the pricing engine recomputes. The money fields
// below Subtotal are derived and only written by the engine.
type Order struct {
	ID                     uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Number                 string          `gorm:"column:number;not null;uniqueIndex" json:"number"`
	Status                 string          `gorm:"column:status;not null;default:'draft'" json:"status"`
	CustomerID             *uuid.UUID      `gorm:"column:customer_id;type:uuid" json:"customer_id,omitempty"`
	ShippingMethodID       *uuid.UUID      `gorm:"column:shipping_method_id;type:uuid" json:"shipping_method_id,omitempty"`
	ShippingSubOption      *string         `gorm:"column:shipping_sub_option" json:"shipping_sub_option,omitempty"`
	ShippingSubOptionLabel string          `gorm:"column:shipping_sub_option_label;not null;default:''" json:"shipping_sub_option_label"`
	PaymentMethodID        *uuid.UUID      `gorm:"column:payment_method_id;type:uuid" json:"payment_method_id,omitempty"`
	CouponID               *uuid.UUID      `gorm:"column:coupon_id;type:uuid" json:"coupon_id,omitempty"`
	ShippingAddress        *types.Address  `gorm:"column:shipping_address;type:jsonb" json:"shipping_address,omitempty"`
	TaxExempt              bool            `gorm:"column:tax_exempt;not null;default:false" json:"tax_exempt"`
	FreeShipping           bool            `gorm:"column:free_shipping;not null;default:false" json:"free_shipping"`
	CurrencyRate           decimal.Decimal `gorm:"column:currency_rate;type:numeric(12,6);not null;default:1" json:"currency_rate"`

	Subtotal                decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null;default:0" json:"subtotal"`
	SubtotalBeforeDiscounts decimal.Decimal `gorm:"column:subtotal_before_discounts;type:numeric(12,2);not null;default:0" json:"subtotal_before_discounts"`
	Discount                decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null;default:0" json:"discount"`
	TotalCost               decimal.Decimal `gorm:"column:total_cost;type:numeric(12,2);not null;default:0" json:"total_cost"`
	GoodsTax                decimal.Decimal `gorm:"column:goods_tax;type:numeric(12,2);not null;default:0" json:"goods_tax"`
	ShippingQuote           decimal.Decimal `gorm:"column:shipping_quote;type:numeric(12,2);not null;default:0" json:"shipping_quote"`
	ShippingDiscount        decimal.Decimal `gorm:"column:shipping_discount;type:numeric(12,2);not null;default:0" json:"shipping_discount"`
	ShippingTax             decimal.Decimal `gorm:"column:shipping_tax;type:numeric(12,2);not null;default:0" json:"shipping_tax"`
	Total                   decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0" json:"total"`

	TaxBreakdown         types.TaxBuckets   `gorm:"column:tax_breakdown;type:jsonb" json:"tax_breakdown"`
	ShippingTaxBreakdown types.TaxBuckets   `gorm:"column:shipping_tax_breakdown;type:jsonb" json:"shipping_tax_breakdown"`
	AppliedRules         types.AppliedRules `gorm:"column:applied_rules;type:jsonb" json:"applied_rules"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Country returns the shipping country, or "" when no address is set.
func (o *Order) Country() string {
	return o.ShippingAddress.CountryCode()
}

// HasShippingMethod reports whether a shipping method is selected.
func (o *Order) HasShippingMethod() bool {
	return o.ShippingMethodID != nil && *o.ShippingMethodID != uuid.Nil
}

// ResetShipping zeroes every shipping-derived field.
func (o *Order) ResetShipping() {
	o.ShippingQuote = decimal.Zero
	o.ShippingDiscount = decimal.Zero
	o.ShippingTax = decimal.Zero
	o.ShippingTaxBreakdown = nil
}

// Editable reports whether the order may still be repriced and saved.
func (o *Order) Editable() bool {
	return o.Status != OrderStatusCompleted && o.Status != OrderStatusCancelled
}
