package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

// OrderLineItem is one product line on an order. UnitPrice, Discount and Cost
// are per unit and tax-exclusive; 0 <= Discount <= UnitPrice.
type OrderLineItem struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID      *uuid.UUID       `gorm:"column:product_id;type:uuid" json:"product_id,omitempty"`
	BundleParentID *uuid.UUID       `gorm:"column:bundle_parent_id;type:uuid" json:"bundle_parent_id,omitempty"`
	Position       int              `gorm:"column:position;not null;default:0" json:"position"`
	SKU            string           `gorm:"column:sku;not null;default:''" json:"sku"`
	Name           string           `gorm:"column:name;not null" json:"name"`
	Quantity       int              `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice      decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	Discount       decimal.Decimal  `gorm:"column:discount;type:numeric(12,2);not null;default:0" json:"discount"`
	Cost           decimal.Decimal  `gorm:"column:cost;type:numeric(12,2);not null;default:0" json:"cost"`
	TaxBreakdown   types.TaxBuckets `gorm:"column:tax_breakdown;type:jsonb" json:"tax_breakdown,omitempty"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is the discounted, tax-exclusive total for the line.
func (i *OrderLineItem) LineTotal() decimal.Decimal {
	return money.MulQty(i.UnitPrice.Sub(i.Discount), i.Quantity)
}

// GrossTotal is unit price times quantity, before discounts.
func (i *OrderLineItem) GrossTotal() decimal.Decimal {
	return money.MulQty(i.UnitPrice, i.Quantity)
}

// SetDiscount stores a per-unit discount clamped to [0, UnitPrice].
func (i *OrderLineItem) SetDiscount(d decimal.Decimal) {
	d = money.Round(money.ClampNonNegative(d))
	i.Discount = money.Min(d, i.UnitPrice)
}

// InBundle reports whether the item belongs to a bundle.
func (i *OrderLineItem) InBundle() bool {
	return i.BundleParentID != nil
}

// Clone returns a copy that shares no mutable state with i.
func (i *OrderLineItem) Clone() *OrderLineItem {
	out := *i
	out.TaxBreakdown = i.TaxBreakdown.Clone()
	return &out
}
