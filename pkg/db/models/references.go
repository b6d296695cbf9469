package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

const (
	CouponKindPercentage   = "percentage"
	CouponKindFixedCart    = "fixed_cart"
	CouponKindFreeShipping = "free_shipping"
)

// Coupon is a promotion code the cart rule engine can apply.
// ShippingMethodIDs limits free shipping to the listed shipping method or
// option ids; empty means every method.
type Coupon struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code              string           `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name              string           `gorm:"column:name;not null" json:"name"`
	Kind              string           `gorm:"column:kind;not null" json:"kind"`
	Amount            decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null;default:0" json:"amount"`
	MinSubtotal       decimal.Decimal  `gorm:"column:min_subtotal;type:numeric(12,2);not null;default:0" json:"min_subtotal"`
	ShippingMethodIDs types.StringList `gorm:"column:shipping_method_ids;type:jsonb" json:"shipping_method_ids"`
	StartsAt          *time.Time       `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt            *time.Time       `gorm:"column:ends_at" json:"ends_at,omitempty"`
	Active            bool             `gorm:"column:active;not null" json:"active"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return nil
}

// Customer is the buyer an order is placed for.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Email     string    `gorm:"column:email;not null" json:"email"`
	GroupID   *string   `gorm:"column:group_id" json:"group_id,omitempty"`
	TaxExempt bool      `gorm:"column:tax_exempt;not null;default:false" json:"tax_exempt"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Group returns the customer group id or "".
func (c *Customer) Group() string {
	if c == nil || c.GroupID == nil {
		return ""
	}
	return *c.GroupID
}

// PaymentMethod is an admin-configured way of paying for an order.
type PaymentMethod struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Active    bool      `gorm:"column:active;not null" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *PaymentMethod) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ShippingMethod is a table-rate shipping method. When SubOptions is not
// empty the method is quoted once per sub-option.
type ShippingMethod struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code        string                   `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name        string                   `gorm:"column:name;not null" json:"name"`
	BaseRate    decimal.Decimal          `gorm:"column:base_rate;type:numeric(12,2);not null;default:0" json:"base_rate"`
	PerUnitRate decimal.Decimal          `gorm:"column:per_unit_rate;type:numeric(12,2);not null;default:0" json:"per_unit_rate"`
	FreeOver    decimal.NullDecimal      `gorm:"column:free_over;type:numeric(12,2)" json:"free_over"`
	Countries   types.StringList         `gorm:"column:countries;type:jsonb" json:"countries"`
	SubOptions  types.ShippingSubOptions `gorm:"column:sub_options;type:jsonb" json:"sub_options"`
	Active      bool                     `gorm:"column:active;not null" json:"active"`
	Position    int                      `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *ShippingMethod) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ShipsTo reports whether the method serves the country. An empty country
// list serves everywhere.
func (s *ShippingMethod) ShipsTo(country string) bool {
	if len(s.Countries) == 0 {
		return true
	}
	for _, c := range s.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// Product is a catalog entry that can be added to an order.
type Product struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKU         string            `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Name        string            `gorm:"column:name;not null" json:"name"`
	Price       decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Cost        decimal.Decimal   `gorm:"column:cost;type:numeric(12,2);not null;default:0" json:"cost"`
	GroupPrices types.GroupPrices `gorm:"column:group_prices;type:jsonb" json:"group_prices"`
	VolumeTiers types.VolumeTiers `gorm:"column:volume_tiers;type:jsonb" json:"volume_tiers"`
	Active      bool              `gorm:"column:active;not null" json:"active"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
