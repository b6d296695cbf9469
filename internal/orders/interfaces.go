package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
)

// Repository persists orders, their line items and the records an order
// references. Lookups return gorm.ErrRecordNotFound when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error

	ListItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLineItem, error)
	SaveItem(ctx context.Context, item *models.OrderLineItem) error
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []*models.OrderLineItem) error

	FindCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindPaymentMethod(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
	FindShippingMethod(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error)
	ListShippingMethods(ctx context.Context) ([]models.ShippingMethod, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}
