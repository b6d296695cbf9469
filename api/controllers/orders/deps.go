package orders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/internal/deferred"
	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
)

// PricingService is the engine surface the admin order handlers call.
type PricingService interface {
	LoadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LoadCustomer(ctx context.Context, order *models.Order) (*models.Customer, error)
	RecalcOrderDiscounts(ctx context.Context, in pricing.RecalcInput) (pricing.RecalcResult, error)
	ApplyManualDiscount(ctx context.Context, order *models.Order, items []*models.OrderLineItem, raw string) (pricing.ManualDiscountResult, error)
}

// SessionService stages item edits until the order is saved.
type SessionService interface {
	Begin(ctx context.Context, orderID uuid.UUID) (*deferred.Session, error)
	SessionItems(ctx context.Context, key string, orderID uuid.UUID) ([]*models.OrderLineItem, error)
	AddProduct(ctx context.Context, key string, orderID, productID uuid.UUID, quantity int, customerGroupID string) (*models.OrderLineItem, error)
	UpdateQuantity(ctx context.Context, key string, orderID, itemID uuid.UUID, quantity int, customerGroupID string) (*models.OrderLineItem, error)
	RemoveItem(ctx context.Context, key string, orderID, itemID uuid.UUID) error
	Discard(ctx context.Context, key string) error
}

// ItemLister reads the persisted items of an order.
type ItemLister interface {
	ListItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLineItem, error)
}

// Locker serializes saves of the same order across API instances.
type Locker interface {
	AcquireLock(ctx context.Context, scope, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope, owner string) error
}

// Deps wires the admin order handlers. Locker may be nil on a single
// instance deployment.
type Deps struct {
	Pricing  PricingService
	Sessions SessionService
	Items    ItemLister
	Locker   Locker
	LockTTL  time.Duration
}

// OrderResponse is the repriced order as rendered to the admin UI.
type OrderResponse struct {
	Order          *models.Order                   `json:"order"`
	Items          []*models.OrderLineItem         `json:"items"`
	Shipping       *pricing.ShippingQuoteCandidate `json:"shipping,omitempty"`
	DiscountsToken string                          `json:"discounts_token,omitempty"`
}

// ManualDiscountResponse adds the parsed manual discount to the repriced order.
type ManualDiscountResponse struct {
	OrderResponse
	Manual pricing.ManualDiscountResult `json:"manual_discount"`
}

func orderResponse(result pricing.RecalcResult) OrderResponse {
	return OrderResponse{
		Order:          result.Order,
		Items:          result.Items,
		Shipping:       result.Totals.Shipping,
		DiscountsToken: result.DiscountsToken,
	}
}
